package services

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mipyme/backend/models"
	"github.com/mipyme/backend/repository"
)

const (
	signatureAlgorithm = "RSA-PSS-SHA256"
	signatureKeySize   = 2048
	certificateTTL     = 365 * 24 * time.Hour
)

// SignatureService produces and verifies digital signatures. It complies
// with Electronic Transactions Law No.20/2023/QH15 (type 2, public digital
// signature): SHA256 digests signed with RSA-PSS under a self-signed
// certificate generated on first start.
type SignatureService struct {
	repo       *repository.GORMRepository
	keysDir    string
	privateKey *rsa.PrivateKey
	cert       *x509.Certificate
}

// SignerInfo identifies who is signing a document.
type SignerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	TaxCode string `json:"tax_code"`
}

// VerificationResult is the outcome of a signature check.
type VerificationResult struct {
	Valid       bool   `json:"valid"`
	SignatureID string `json:"signature_id,omitempty"`
	Signer      string `json:"signer,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Algorithm   string `json:"algorithm,omitempty"`
	Integrity   string `json:"integrity,omitempty"` // "intact", "compromised", "invalid"
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
}

// NewSignatureService loads the RSA keypair and certificate from keysDir,
// generating them if they do not exist yet.
func NewSignatureService(repo *repository.GORMRepository, keysDir string) (*SignatureService, error) {
	if err := os.MkdirAll(keysDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keys directory: %w", err)
	}

	s := &SignatureService{
		repo:    repo,
		keysDir: keysDir,
	}

	if _, err := os.Stat(s.privateKeyPath()); os.IsNotExist(err) {
		if err := s.generateKeys(); err != nil {
			return nil, fmt.Errorf("failed to generate signing keys: %w", err)
		}
		slog.Info("Generated new signing keypair and certificate", "keys_dir", keysDir)
	}

	if err := s.loadKeys(); err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}

	return s, nil
}

func (s *SignatureService) privateKeyPath() string {
	return filepath.Join(s.keysDir, "private_key.pem")
}

func (s *SignatureService) publicKeyPath() string {
	return filepath.Join(s.keysDir, "public_key.pem")
}

func (s *SignatureService) certificatePath() string {
	return filepath.Join(s.keysDir, "certificate.pem")
}

// generateKeys creates the RSA keypair and a self-signed certificate and
// persists them as PEM files.
func (s *SignatureService) generateKeys() error {
	privateKey, err := rsa.GenerateKey(rand.Reader, signatureKeySize)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key: %w", err)
	}

	keyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})
	if err := os.WriteFile(s.privateKeyPath(), keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	if err := os.WriteFile(s.publicKeyPath(), pubPEM, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate certificate serial: %w", err)
	}

	subject := pkix.Name{
		Country:      []string{"VN"},
		Province:     []string{"Hanoi"},
		Locality:     []string{"Hanoi"},
		Organization: []string{"MiPyME Demo"},
		CommonName:   "demo.mipyme.vn",
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      subject,
		Issuer:       subject,
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(certificateTTL),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(s.certificatePath(), certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	return nil
}

// loadKeys reads the private key and certificate from disk.
func (s *SignatureService) loadKeys() error {
	keyPEM, err := os.ReadFile(s.privateKeyPath())
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return fmt.Errorf("invalid private key PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	privateKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("private key is not RSA")
	}
	s.privateKey = privateKey

	certPEM, err := os.ReadFile(s.certificatePath())
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ = pem.Decode(certPEM)
	if block == nil {
		return fmt.Errorf("invalid certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	s.cert = cert

	return nil
}

// newSignatureID builds a signature identifier. The timestamp prefix keeps
// identifiers sortable; the random suffix keeps them unique within a second.
func newSignatureID(now time.Time) string {
	return fmt.Sprintf("SIG-%s-%s", now.Format("20060102150405"), uuid.New().String()[:8])
}

// SignFile signs the file at documentPath and persists the signature record.
func (s *SignatureService) SignFile(ctx context.Context, documentPath string, signer SignerInfo, documentType string) (*models.Signature, error) {
	data, err := os.ReadFile(documentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	digest := sha256.Sum256(data)

	signatureBytes, err := rsa.SignPSS(rand.Reader, s.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign document: %w", err)
	}

	now := time.Now()
	validUntil := s.cert.NotAfter
	sig := &models.Signature{
		SignatureID:       newSignatureID(now),
		DocumentPath:      filepath.Clean(documentPath),
		DocumentType:      documentType,
		SignerName:        signer.Name,
		SignerEmail:       signer.Email,
		SignerTaxCode:     signer.TaxCode,
		SignatureData:     base64.StdEncoding.EncodeToString(signatureBytes),
		DocumentHash:      base64.StdEncoding.EncodeToString(digest[:]),
		Algorithm:         signatureAlgorithm,
		KeySize:           signatureKeySize,
		CertificateSerial: s.cert.SerialNumber.String(),
		CertificateIssuer: s.cert.Issuer.String(),
		Status:            "valid",
		Timestamp:         now,
		ValidUntil:        &validUntil,
	}

	if err := s.repo.CreateSignature(ctx, sig); err != nil {
		return nil, fmt.Errorf("failed to store signature: %w", err)
	}

	slog.Info("Document signed", "signature_id", sig.SignatureID, "document_path", sig.DocumentPath, "signer", signer.Name)
	return sig, nil
}

// VerifyFile checks integrity and authenticity of a previously signed file.
func (s *SignatureService) VerifyFile(ctx context.Context, documentPath string) (*VerificationResult, error) {
	sig, err := s.repo.GetSignatureByDocumentPath(ctx, filepath.Clean(documentPath))
	if err != nil {
		return nil, fmt.Errorf("failed to look up signature: %w", err)
	}
	if sig == nil {
		return &VerificationResult{
			Valid: false,
			Error: "No signature found for this document",
		}, nil
	}

	data, err := os.ReadFile(documentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	digest := sha256.Sum256(data)

	storedHash, err := base64.StdEncoding.DecodeString(sig.DocumentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored hash: %w", err)
	}
	if !bytes.Equal(storedHash, digest[:]) {
		return &VerificationResult{
			Valid:     false,
			Error:     "Document has been modified after signing",
			Integrity: "compromised",
		}, nil
	}

	signatureBytes, err := base64.StdEncoding.DecodeString(sig.SignatureData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}

	err = rsa.VerifyPSS(&s.privateKey.PublicKey, crypto.SHA256, digest[:], signatureBytes, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	})
	if err != nil {
		return &VerificationResult{
			Valid:     false,
			Error:     fmt.Sprintf("Signature verification failed: %v", err),
			Integrity: "invalid",
		}, nil
	}

	now := time.Now()
	if err := s.repo.MarkSignatureVerified(ctx, sig.SignatureID, now); err != nil {
		slog.Warn("Failed to record verification time", "signature_id", sig.SignatureID, "error", err)
	}

	return &VerificationResult{
		Valid:       true,
		SignatureID: sig.SignatureID,
		Signer:      sig.SignerName,
		Timestamp:   sig.Timestamp.Format(time.RFC3339),
		Algorithm:   sig.Algorithm,
		Integrity:   "intact",
		Message:     "Signature is valid and complies with digital signature standards",
	}, nil
}

// SignInvoiceXML signs a generated invoice XML with the billing system
// identity.
func (s *SignatureService) SignInvoiceXML(ctx context.Context, xmlPath string) (*models.Signature, error) {
	return s.SignFile(ctx, xmlPath, SignerInfo{
		Name:    "MiPyME Billing System",
		Email:   "facturacion@mipyme.vn",
		TaxCode: "DEMO-TAX-CODE",
	}, "invoice")
}
