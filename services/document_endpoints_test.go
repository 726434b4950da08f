package services

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	ws "github.com/mipyme/backend/websocket"
	"github.com/stretchr/testify/require"
)

func newTestDocumentRouter(t *testing.T) (*chi.Mux, *DocumentEndpoints) {
	t.Helper()

	repo := newTestRepository(t)
	store := NewFileStore(t.TempDir())
	share := NewShareService("test-secret", time.Hour)
	hub := ws.NewHub()
	go hub.Run()
	audit := NewAuditService(repo, hub)

	endpoints := NewDocumentEndpoints(repo, store, share, audit, 16*1024*1024)

	r := chi.NewRouter()
	endpoints.RegisterRoutes(r)
	return r, endpoints
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func uploadTestDocument(t *testing.T, router *chi.Mux, title string) string {
	t.Helper()

	body, contentType := multipartUpload(t, map[string]string{
		"title":    title,
		"category": "reports",
		"tags":     "finanzas, 2026",
	}, "informe.pdf", "%PDF-1.4 test content")

	req := httptest.NewRequest("POST", "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadDocumentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.DocumentID)
	return resp.DocumentID
}

func TestUploadDocument(t *testing.T) {
	router, endpoints := newTestDocumentRouter(t)

	docID := uploadTestDocument(t, router, "Informe mensual")

	// The file lands on disk under the document ID
	require.True(t, endpoints.store.Exists(docID+".pdf"))

	// And the metadata is retrievable
	req := httptest.NewRequest("GET", "/documents/"+docID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Informe mensual")
}

func TestUploadDocumentRejectsDisallowedType(t *testing.T) {
	router, _ := newTestDocumentRouter(t)

	body, contentType := multipartUpload(t, nil, "malware.exe", "MZ")
	req := httptest.NewRequest("POST", "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocumentRequiresFile(t *testing.T) {
	router, _ := newTestDocumentRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("title", "sin archivo"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/documents/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadDocument(t *testing.T) {
	router, _ := newTestDocumentRouter(t)
	docID := uploadTestDocument(t, router, "Descargable")

	req := httptest.NewRequest("GET", "/documents/"+docID+"/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	require.Equal(t, "%PDF-1.4 test content", rec.Body.String())
}

func TestDeleteDocument(t *testing.T) {
	router, endpoints := newTestDocumentRouter(t)
	docID := uploadTestDocument(t, router, "Para borrar")

	req := httptest.NewRequest("DELETE", "/documents/"+docID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.False(t, endpoints.store.Exists(docID+".pdf"))

	// Subsequent lookups return 404
	req = httptest.NewRequest("GET", "/documents/"+docID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDocumentNotFound(t *testing.T) {
	router, _ := newTestDocumentRouter(t)

	req := httptest.NewRequest("GET", "/documents/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchDocumentsEndpoint(t *testing.T) {
	router, _ := newTestDocumentRouter(t)
	uploadTestDocument(t, router, "Informe anual")
	uploadTestDocument(t, router, "Contrato proveedor")

	req := httptest.NewRequest("GET", "/documents/search?q=informe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchDocumentsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "Informe anual", resp.Results[0].Title)
}

func TestUploadVersionAndListVersions(t *testing.T) {
	router, _ := newTestDocumentRouter(t)
	docID := uploadTestDocument(t, router, "Con versiones")

	body, contentType := multipartUpload(t, map[string]string{
		"change_notes": "corrected totals",
	}, "informe_v2.pdf", "%PDF-1.4 revised content")

	req := httptest.NewRequest("POST", "/documents/"+docID+"/versions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var versionResp struct {
		Success bool `json:"success"`
		Version int  `json:"version"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&versionResp))
	require.True(t, versionResp.Success)
	require.Equal(t, 2, versionResp.Version)

	// The archived revision shows up in the history
	req = httptest.NewRequest("GET", "/documents/"+docID+"/versions", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Versions []struct {
			VersionNumber int    `json:"version_number"`
			ChangeNotes   string `json:"change_notes"`
		} `json:"versions"`
		Current int `json:"current"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	require.Equal(t, 2, listResp.Current)
	require.Len(t, listResp.Versions, 1)
	require.Equal(t, 1, listResp.Versions[0].VersionNumber)

	// The new content is served on download
	req = httptest.NewRequest("GET", "/documents/"+docID+"/download", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "%PDF-1.4 revised content", rec.Body.String())
}

func TestShareAndSharedDownload(t *testing.T) {
	router, _ := newTestDocumentRouter(t)
	docID := uploadTestDocument(t, router, "Compartido")

	req := httptest.NewRequest("POST", "/documents/"+docID+"/share", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var shareResp ShareDocumentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&shareResp))
	require.NotEmpty(t, shareResp.Token)

	// The minted link serves the document without any other context
	req = httptest.NewRequest("GET", "/shared/"+shareResp.Token, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "%PDF-1.4 test content", rec.Body.String())
}

func TestUploadVersionFailureKeepsHistoryClean(t *testing.T) {
	router, endpoints := newTestDocumentRouter(t)
	docID := uploadTestDocument(t, router, "Sin historial fantasma")

	// Occupy the path of the next revision so storing it fails
	require.NoError(t, os.Mkdir(endpoints.store.Path(docID+"_v2.pdf"), 0755))

	body, contentType := multipartUpload(t, nil, "informe_v2.pdf", "%PDF-1.4 revised")
	req := httptest.NewRequest("POST", "/documents/"+docID+"/versions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The failed upload must leave no history row and the document untouched,
	// or a retry would archive the same revision twice
	req = httptest.NewRequest("GET", "/documents/"+docID+"/versions", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Versions []struct {
			VersionNumber int `json:"version_number"`
		} `json:"versions"`
		Current int `json:"current"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	require.Equal(t, 1, listResp.Current)
	require.Empty(t, listResp.Versions)
}

func TestShareEndpointsUnavailableWithoutSecret(t *testing.T) {
	repo := newTestRepository(t)
	store := NewFileStore(t.TempDir())
	hub := ws.NewHub()
	go hub.Run()
	audit := NewAuditService(repo, hub)
	endpoints := NewDocumentEndpoints(repo, store, NewShareService("", time.Hour), audit, 16*1024*1024)

	router := chi.NewRouter()
	endpoints.RegisterRoutes(router)

	docID := uploadTestDocument(t, router, "Sin secreto")

	req := httptest.NewRequest("POST", "/documents/"+docID+"/share", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	req = httptest.NewRequest("GET", "/shared/any-token", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSharedDownloadRejectsBadToken(t *testing.T) {
	router, _ := newTestDocumentRouter(t)

	req := httptest.NewRequest("GET", "/shared/garbage-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseTags(t *testing.T) {
	require.Equal(t, []string{}, parseTags(""))
	require.Equal(t, []string{"a", "b"}, parseTags("a,b"))
	require.Equal(t, []string{"a", "b"}, parseTags(" a , b , "))
	require.Equal(t, []string{}, parseTags(" , ,"))
}
