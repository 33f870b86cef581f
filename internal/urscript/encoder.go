package urscript

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// Valid source bins.
const (
	MinLocation = 1
	MaxLocation = 3
)

// UnlockPreamble is the dashboard command that releases the brakes.
const UnlockPreamble = "brake release\n"

// ProgramName is the routine defined and invoked by every pick program.
const ProgramName = "move_item_to_shipment_box"

// ErrInvalidLocation indicates a source bin outside MinLocation..MaxLocation.
var ErrInvalidLocation = errors.New("INVALID_LOCATION")

// ValidationError reports a rejected encoder input.
type ValidationError struct {
	Field string
	Value int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s %d must be in %d..%d", ErrInvalidLocation, e.Field, e.Value, MinLocation, MaxLocation)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidLocation
}

// Grid → pose mapping is linear: 0.1 m per grid step from the origin below,
// with a fixed tool orientation.
const pickTemplate = `def {{.Name}}():
  # grid coordinates (0..3)
  SBOX_X = {{.BinX}}
  SBOX_Y = {{.BinY}}
  ITEM_X = {{.Location}}
  ITEM_Y = {{.SourceRow}}
  DOWN_Z = {{.DownZ}}

  def moveto(x, y, z = 0):
    px = {{num .OriginX}} + x * {{num .Scale}}
    py = {{num .OriginY}} + y * {{num .Scale}}
    pz = {{num .OriginZ}} + z * {{num .Scale}}
    movel(p[px, py, pz, {{num .RX}}, {{num .RY}}, {{num .RZ}}], a={{num .Accel}}, v={{num .Velocity}}, r={{num .Blend}})
  end

  # above item, down, up, above shipment box, down, up
  moveto(ITEM_X, ITEM_Y, 0)
  moveto(ITEM_X, ITEM_Y, -DOWN_Z)
  moveto(ITEM_X, ITEM_Y, 0)

  moveto(SBOX_X, SBOX_Y, 0)
  moveto(SBOX_X, SBOX_Y, -DOWN_Z)
  moveto(SBOX_X, SBOX_Y, 0)
end

{{.Name}}()
`

var pickProgram = template.Must(template.New("pick").Funcs(template.FuncMap{
	"num": formatNumber,
}).Parse(pickTemplate))

// pickParams fills pickTemplate.
type pickParams struct {
	Name      string
	Location  int
	BinX      int
	BinY      int
	SourceRow int
	DownZ     int

	OriginX, OriginY, OriginZ float64
	Scale                     float64
	RX, RY, RZ                float64
	Accel, Velocity, Blend    float64
}

func defaultPickParams(location int) pickParams {
	return pickParams{
		Name:      ProgramName,
		Location:  location,
		BinX:      3,
		BinY:      3,
		SourceRow: 1,
		DownZ:     1,
		OriginX:   0.0,
		OriginY:   0.1,
		OriginZ:   0.3,
		Scale:     0.1,
		RX:        2.22,
		RY:        -2.22,
		RZ:        0,
		Accel:     1.2,
		Velocity:  0.25,
		Blend:     0,
	}
}

// ValidateLocation checks that location is one of the physical source bins.
func ValidateLocation(location int) error {
	if location < MinLocation || location > MaxLocation {
		return &ValidationError{Field: "location", Value: location}
	}
	return nil
}

// EncodePick returns the program that picks one unit from location and drops
// it in the shipment bin. Invalid locations fail before any text is produced.
func EncodePick(location int) (string, error) {
	if err := ValidateLocation(location); err != nil {
		return "", err
	}

	var b strings.Builder
	if err := pickProgram.Execute(&b, defaultPickParams(location)); err != nil {
		return "", fmt.Errorf("render pick program: %w", err)
	}
	return NormalizeTerminator(b.String()), nil
}

// EncodeUnlockPreamble returns the control-port command sent before every program.
func EncodeUnlockPreamble() string {
	return UnlockPreamble
}

// NormalizeTerminator makes payload end with exactly one "\n".
func NormalizeTerminator(payload string) string {
	return strings.TrimRight(payload, "\r\n") + "\n"
}

// formatNumber renders a float with a '.' decimal separator and at least one
// fractional digit, independent of any locale.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
