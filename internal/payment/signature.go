package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader        = "Payment-Signature"
	DefaultSignatureMaxAge = 5 * time.Minute
)

// Signer produces and checks "t=<unix>,v1=<hex hmac>" headers where the MAC
// covers "<t>.<body>".
type Signer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewSigner(secret string, maxAge time.Duration) *Signer {
	if maxAge <= 0 {
		maxAge = DefaultSignatureMaxAge
	}
	return &Signer{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

func (s *Signer) Sign(payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + s.mac(ts, payload)
}

func (s *Signer) Verify(payload []byte, header string) error {
	if len(s.secret) == 0 || header == "" {
		return ErrWebhookSignatureInvalid
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrWebhookSignatureInvalid
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrWebhookSignatureInvalid
	}
	age := s.now().Sub(time.Unix(unix, 0))
	if age > s.maxAge || age < -s.maxAge {
		return ErrWebhookSignatureInvalid
	}

	expected := s.mac(ts, payload)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrWebhookSignatureInvalid
}

func (s *Signer) mac(ts string, payload []byte) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(ts))
	m.Write([]byte("."))
	m.Write(payload)
	return hex.EncodeToString(m.Sum(nil))
}
