package guide

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format renders an instruction as an embedded HTML comment that Find can read back.
func Format(inst ScreenshotInstruction) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(inst); err != nil {
		return "", fmt.Errorf("encode %s: %w", inst.ImagePath, err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("<!--%s\n%s-->", Marker, buf.String()), nil
}
