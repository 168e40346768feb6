package ticketing

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultQRSize = 256
	maxQRPayload  = 512
)

var ErrEncoding = errors.New("qr encoding failed")

// QRImage holds the rendered ticket QR in both print and embed forms.
type QRImage struct {
	PNG     []byte
	DataURL string
}

// EncodeQR renders payload as a PNG at medium error correction.
func EncodeQR(payload string, size int) (QRImage, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" || len(payload) > maxQRPayload {
		return QRImage{}, ErrEncoding
	}
	png, err := GenerateQRImagePNG(payload, size)
	if err != nil {
		return QRImage{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return QRImage{PNG: png, DataURL: PNGDataURL(png)}, nil
}

func GenerateQRImagePNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}

// PNGDataURL wraps raw PNG bytes for e-mail and PDF embedding.
func PNGDataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
