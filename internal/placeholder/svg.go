package placeholder

import (
	"bytes"
	"encoding/xml"
	"math"
	"strconv"
	"strings"
)

// svgDimensions reads the intrinsic size of an svg document from the root
// element's width/height, falling back to the viewBox. Unknown sizes are 0.
func svgDimensions(data []byte) (int, int) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return 0, 0
		}

		var width, height, viewBox string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "width":
				width = a.Value
			case "height":
				height = a.Value
			case "viewBox":
				viewBox = a.Value
			}
		}
		w, wok := svgLength(width)
		h, hok := svgLength(height)
		if wok && hok {
			return w, h
		}
		fields := strings.FieldsFunc(viewBox, func(r rune) bool { return r == ' ' || r == ',' })
		if len(fields) == 4 {
			vw, err1 := strconv.ParseFloat(fields[2], 64)
			vh, err2 := strconv.ParseFloat(fields[3], 64)
			if err1 == nil && err2 == nil && vw > 0 && vh > 0 {
				return int(math.Round(vw)), int(math.Round(vh))
			}
		}
		return 0, 0
	}
}

// svgLength parses absolute lengths ("120", "120px"). Relative units are
// rejected.
func svgLength(v string) (int, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(math.Round(f)), true
}
