// ABOUTME: Renders provider pairing material into a scannable artifact
// ABOUTME: Produces a PNG data URL the dashboard can drop into an <img> tag

package pairing

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// pngSize is the rendered QR edge length in pixels.
const pngSize = 256

// Render encodes raw pairing material as a QR code and returns it as a
// base64 PNG data URL.
func Render(material string) (string, error) {
	if material == "" {
		return "", fmt.Errorf("empty pairing material")
	}

	png, err := qrcode.Encode(material, qrcode.Medium, pngSize)
	if err != nil {
		return "", fmt.Errorf("encoding pairing QR: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
