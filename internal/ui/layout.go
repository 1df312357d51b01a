package ui

func DetermineLayoutMode(cols, rows int) LayoutMode {
	if cols < 60 || rows < 16 {
		return LayoutTooSmall
	}
	if cols >= 110 && rows >= 28 {
		return LayoutWide
	}
	return LayoutMedium
}

// gridColumns is the number of challenge cards per grid row.
func gridColumns(mode LayoutMode, cols int) int {
	switch mode {
	case LayoutWide:
		return max(3, min(5, cols/34))
	case LayoutMedium:
		return 2
	default:
		return 1
	}
}
