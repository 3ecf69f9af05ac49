package analyzer

import (
	"image"
	"image/color"
	"math"
)

// ContrastChecker finds edges with a Sobel operator. A render with (almost)
// no edges is an empty viewport: the mesh did not load or the camera looks
// past it.
type ContrastChecker struct {
	EdgeThreshold float64 // gradient magnitude that counts as an edge
	MinEdgeRatio  float64 // share of edge pixels below which the image is blank
}

func NewContrastChecker() *ContrastChecker {
	return &ContrastChecker{
		EdgeThreshold: 30.0,
		MinEdgeRatio:  0.001,
	}
}

func (c *ContrastChecker) Check(img image.Image) (Report, error) {
	bounds := img.Bounds()
	if bounds.Dx() < 3 || bounds.Dy() < 3 {
		return Report{}, errTooSmall(bounds)
	}

	gray := toGrayscale(img)
	edges, count := sobelEdges(gray, c.EdgeThreshold)

	inner := (bounds.Dx() - 2) * (bounds.Dy() - 2)
	report := Report{EdgeRatio: float64(count) / float64(inner)}
	report.Blank = report.EdgeRatio < c.MinEdgeRatio
	if report.Blank {
		return report, nil
	}

	report.Content = edgeBounds(edges)
	// Nearby edges merge into one object after dilation.
	report.Regions = len(findContours(dilate(edges, 5, 2)))
	report.Clipped = touchesBorder(report.Content, bounds)
	return report, nil
}

func toGrayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}

	return gray
}

// sobelEdges returns the thresholded edge map and the number of edge pixels.
func sobelEdges(gray *image.Gray, threshold float64) (*image.Gray, int) {
	bounds := gray.Bounds()
	edges := image.NewGray(bounds)

	gx := [3][3]int{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	gy := [3][3]int{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	count := 0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var sumX, sumY float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					pixel := float64(gray.GrayAt(x+kx, y+ky).Y)
					sumX += pixel * float64(gx[ky+1][kx+1])
					sumY += pixel * float64(gy[ky+1][kx+1])
				}
			}

			if math.Sqrt(sumX*sumX+sumY*sumY) > threshold {
				edges.SetGray(x, y, color.Gray{Y: 255})
				count++
			}
		}
	}

	return edges, count
}

// edgeBounds is the smallest rectangle holding every edge pixel.
func edgeBounds(edges *image.Gray) image.Rectangle {
	bounds := edges.Bounds()
	found := image.Rectangle{}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if edges.GrayAt(x, y).Y == 0 {
				continue
			}
			found = found.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return found
}

// dilate grows white regions by a square kernel.
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	bounds := img.Bounds()
	result := img
	half := kernelSize / 2

	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(bounds)

		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				maxVal := uint8(0)
				for ky := -half; ky <= half && maxVal < 255; ky++ {
					for kx := -half; kx <= half; kx++ {
						p := image.Point{X: x + kx, Y: y + ky}
						if !p.In(bounds) {
							continue
						}
						if val := result.GrayAt(p.X, p.Y).Y; val > maxVal {
							maxVal = val
						}
					}
				}
				temp.SetGray(x, y, color.Gray{Y: maxVal})
			}
		}

		result = temp
	}

	return result
}

// findContours returns bounding rectangles of connected white regions.
func findContours(img *image.Gray) []image.Rectangle {
	bounds := img.Bounds()
	visited := make([]bool, bounds.Dx()*bounds.Dy())
	idx := func(x, y int) int {
		return (y-bounds.Min.Y)*bounds.Dx() + (x - bounds.Min.X)
	}

	var contours []image.Rectangle
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y > 128 && !visited[idx(x, y)] {
				contours = append(contours, floodFill(img, visited, idx, x, y))
			}
		}
	}

	return contours
}

func floodFill(img *image.Gray, visited []bool, idx func(x, y int) int, startX, startY int) image.Rectangle {
	bounds := img.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !p.In(bounds) || visited[idx(p.X, p.Y)] || img.GrayAt(p.X, p.Y).Y <= 128 {
			continue
		}
		visited[idx(p.X, p.Y)] = true

		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)

		stack = append(stack,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// touchesBorder reports content on the outermost ring Sobel inspects; the
// 1px image border itself never holds an edge.
func touchesBorder(content, bounds image.Rectangle) bool {
	if content.Empty() {
		return false
	}
	const margin = 1
	return content.Min.X <= bounds.Min.X+margin || content.Min.Y <= bounds.Min.Y+margin ||
		content.Max.X >= bounds.Max.X-margin || content.Max.Y >= bounds.Max.Y-margin
}
