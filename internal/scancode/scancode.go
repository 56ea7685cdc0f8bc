// Package scancode builds and parses the payload printed on a vehicle's QR
// code and renders it as a PNG image.
package scancode

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/fzkn4/gate-security/internal/models"
	qrcode "github.com/skip2/go-qrcode"
)

// Tag prefixes every payload this system issues.
const Tag = "VEHICLE:"

// Payload is the decoded content of a scanned code. Plate is empty for codes
// that carry no plate segment.
type Payload struct {
	VehicleID int64
	Plate     string
}

// Encode returns the payload string for a vehicle id and plate.
func Encode(vehicleID int64, plate string) string {
	return Tag + strconv.FormatInt(vehicleID, 10) + ":" + plate
}

// Decode parses "VEHICLE:<id>" or "VEHICLE:<id>:<plate>". Anything else is
// an ErrMalformedScan.
func Decode(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, Tag) {
		return Payload{}, fmt.Errorf("%w: missing %q tag", models.ErrMalformedScan, Tag)
	}

	rest := strings.TrimPrefix(raw, Tag)
	idPart, plate, _ := strings.Cut(rest, ":")

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return Payload{}, fmt.Errorf("%w: vehicle id %q is not a positive number", models.ErrMalformedScan, idPart)
	}

	return Payload{VehicleID: id, Plate: plate}, nil
}

// Encoder renders a payload as an image.
type Encoder interface {
	PNG(payload string) ([]byte, error)
}

// QREncoder renders payloads with github.com/skip2/go-qrcode.
type QREncoder struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// NewQREncoder returns an encoder producing size x size images with low error
// correction, matching the codes printed for the gate scanners.
func NewQREncoder(size int) *QREncoder {
	if size <= 0 {
		size = 256
	}
	return &QREncoder{Size: size, Level: qrcode.Low}
}

func (e *QREncoder) PNG(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, e.Level, e.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: encode qr code: %w", models.ErrDependency, err)
	}
	return png, nil
}

// DataURL formats PNG bytes as an inline image URL.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
