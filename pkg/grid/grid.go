// Package grid maps 2-D display coordinates onto row-major cell indices.
package grid

// GetGridIndex returns the row-major index of (x, y) in a grid cols wide.
func GetGridIndex(x, y, cols int64) int64 {
	return y*cols + x
}

// InBounds reports whether (x, y) lies inside a cols×rows grid.
func InBounds(x, y, cols, rows int64) bool {
	return x >= 0 && x < cols && y >= 0 && y < rows
}
