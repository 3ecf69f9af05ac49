package engine

import (
	"path/filepath"
	"strconv"
	"strings"
)

// FrameName is the file name of animation frame idx of imagePath.
//
// The default rule replaces the extension: "bed/fill.gif" gives "bed/fill0.png".
// The legacy rule appends to the whole path ("bed/fill.gif0.png"), which is
// how frames of existing guides were named.
func FrameName(imagePath string, idx int, legacy bool) string {
	if legacy {
		return imagePath + strconv.Itoa(idx) + ".png"
	}
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + strconv.Itoa(idx) + ".png"
}
