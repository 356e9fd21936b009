// Package apns wakes managed devices through Apple's push service. MDM
// pushes are certificate-authenticated: the TLS client certificate is the
// push certificate whose topic the enrollment profile advertised, and the
// payload carries nothing but the device's push magic.
package apns

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/focusphone/mdmserver/utils"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pkcs12"
)

const (
	ProductionHost = "api.push.apple.com"
	SandboxHost    = "api.sandbox.push.apple.com"
)

// ErrClientNotInitialized - when the APNs client hasn't been initialized
var ErrClientNotInitialized = errors.New("APNs client not initialized")

// ErrMissingPushCredentials - the device has no usable token/magic pair
var ErrMissingPushCredentials = errors.New("missing push token or push magic")

type PushClient interface {
	Push(pushToken, pushMagic string) error
}

type APNSClient struct {
	host   string
	topic  string
	client *utils.HTTPClient
}

// pushClient holds the global APNs client instance
var pushClient PushClient

// InitClient loads the push certificate and initializes the global client.
// Accepts a PEM cert/key pair or a password-protected .p12 bundle.
func InitClient(certPath, keyPath, keyPassword, topic string, production bool) error {
	cert, err := loadPushCertificate(certPath, keyPath, keyPassword)
	if err != nil {
		return errors.Wrap(err, "InitClient")
	}

	if cert.Leaf != nil {
		now := time.Now()
		if now.After(cert.Leaf.NotAfter) {
			return errors.New("push certificate is expired")
		}
		if now.Before(cert.Leaf.NotBefore) {
			return errors.New("push certificate is not yet valid")
		}
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
		},
		ForceAttemptHTTP2: true,
	}

	host := SandboxHost
	if production {
		host = ProductionHost
	}

	pushClient = &APNSClient{
		host:   host,
		topic:  topic,
		client: utils.NewHTTPClientWithTransport(30*time.Second, transport, nil),
	}
	return nil
}

// SetClientForTesting allows injecting a mock client for testing
func SetClientForTesting(client PushClient) {
	pushClient = client
}

// Client returns the global APNs client instance.
// Returns ErrClientNotInitialized if InitClient hasn't been called.
func Client() (PushClient, error) {
	if pushClient == nil {
		return nil, ErrClientNotInitialized
	}
	return pushClient, nil
}

func loadPushCertificate(certPath, keyPath, keyPassword string) (tls.Certificate, error) {
	var cert tls.Certificate

	if strings.EqualFold(filepath.Ext(certPath), ".p12") {
		data, err := os.ReadFile(certPath)
		if err != nil {
			return cert, errors.Wrap(err, "read push certificate bundle")
		}
		key, leaf, err := pkcs12.Decode(data, keyPassword)
		if err != nil {
			return cert, errors.Wrap(err, "decode push certificate bundle")
		}
		return tls.Certificate{
			Certificate: [][]byte{leaf.Raw},
			PrivateKey:  key,
			Leaf:        leaf,
		}, nil
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return cert, errors.Wrap(err, "load push certificate pair")
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return cert, errors.Wrap(err, "parse push certificate")
		}
		cert.Leaf = leaf
	}
	return cert, nil
}

// Push sends the "check in now" wake to a single device. The payload body is
// only the push magic; priority is highest, expiration zero so APNs never
// retries on our behalf.
func (c *APNSClient) Push(pushToken, pushMagic string) error {
	if pushToken == "" || pushMagic == "" {
		return ErrMissingPushCredentials
	}

	payload, err := json.Marshal(map[string]string{"mdm": pushMagic})
	if err != nil {
		return errors.Wrap(err, "Push: marshal payload")
	}

	url := "https://" + c.host + "/3/device/" + pushToken
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return errors.Wrap(err, "Push: create request")
	}
	req.Header.Set("apns-topic", c.topic)
	req.Header.Set("apns-push-type", "mdm")
	req.Header.Set("apns-priority", "10")
	req.Header.Set("apns-expiration", "0")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "Push: execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return errors.Errorf("Push: APNs returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
