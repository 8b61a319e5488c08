package reconcile

// Palette is an ordered list of colors assigned to cluster labels.
type Palette []string

// Index returns the palette position for a label. It is always in
// [0, len(p)) and stable for a given label and palette size.
func (p Palette) Index(label int) int {
	return PaletteIndex(label, len(p))
}

// Color returns the color for a label, or "" for an empty palette.
func (p Palette) Color(label int) string {
	if len(p) == 0 {
		return ""
	}
	return p[p.Index(label)]
}

// PaletteIndex maps a label onto a palette of the given size.
func PaletteIndex(label, size int) int {
	if size <= 0 {
		return 0
	}
	i := label % size
	if i < 0 {
		i += size
	}
	return i
}
