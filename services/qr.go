package services

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the PNG edge length in pixels.
const DefaultQRSize = 256

// ChargePointURL is the guest entry link printed on a charge point.
func ChargePointURL(publicURL string, nav Navigation) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(publicURL), "/")
	if base == "" {
		return "", errors.New("qr: public URL is not configured")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("qr: invalid public URL %q", publicURL)
	}
	return base + nav.EntryURL(), nil
}

// ChargePointQR renders the entry link of a charge point connector as a PNG QR code.
func ChargePointQR(publicURL string, nav Navigation, size int) ([]byte, string, error) {
	link, err := ChargePointURL(publicURL, nav)
	if err != nil {
		return nil, "", err
	}
	if size <= 0 {
		size = DefaultQRSize
	}

	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, "", fmt.Errorf("qr: encode: %w", err)
	}
	return png, link, nil
}
