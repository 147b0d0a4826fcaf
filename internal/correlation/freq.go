package correlation

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
)

// Frequency maps are computed over a fixed resolution so artifacts of any
// size compare against each other.
const freqSize = 256

// highFreqMap loads an image, resizes it to freqSize x freqSize, converts
// to grayscale and returns the high-frequency DCT quadrant flattened to a
// vector. Synthetic generation pipelines leave correlated artifacts in the
// high spatial frequencies.
func highFreqMap(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}

	resized := image.NewRGBA(image.Rect(0, 0, freqSize, freqSize))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	gray := grayscale(resized)
	coeffs := dct2D(gray)

	// Bottom-right quadrant holds the highest spatial frequencies.
	half := freqSize / 2
	out := make([]float64, 0, half*half)
	for y := half; y < freqSize; y++ {
		for x := half; x < freqSize; x++ {
			out = append(out, coeffs[y][x])
		}
	}
	return out, nil
}

func grayscale(img *image.RGBA) [][]float64 {
	out := make([][]float64, freqSize)
	for y := 0; y < freqSize; y++ {
		row := make([]float64, freqSize)
		for x := 0; x < freqSize; x++ {
			i := img.PixOffset(x, y)
			r := float64(img.Pix[i])
			g := float64(img.Pix[i+1])
			b := float64(img.Pix[i+2])
			// ITU-R BT.601 luma weights.
			row[x] = 0.299*r + 0.587*g + 0.114*b
		}
		out[y] = row
	}
	return out
}

// cosTable precomputes the DCT-II basis for freqSize-point transforms.
var cosTable = func() [][]float64 {
	table := make([][]float64, freqSize)
	for k := 0; k < freqSize; k++ {
		table[k] = make([]float64, freqSize)
		for n := 0; n < freqSize; n++ {
			table[k][n] = math.Cos(math.Pi * float64(k) * (2*float64(n) + 1) / (2 * freqSize))
		}
	}
	return table
}()

// dct2D applies a separable 2-D DCT-II: first along rows, then columns.
func dct2D(input [][]float64) [][]float64 {
	rows := make([][]float64, freqSize)
	for y := 0; y < freqSize; y++ {
		rows[y] = dct1D(input[y])
	}

	out := make([][]float64, freqSize)
	for y := 0; y < freqSize; y++ {
		out[y] = make([]float64, freqSize)
	}
	col := make([]float64, freqSize)
	for x := 0; x < freqSize; x++ {
		for y := 0; y < freqSize; y++ {
			col[y] = rows[y][x]
		}
		transformed := dct1D(col)
		for y := 0; y < freqSize; y++ {
			out[y][x] = transformed[y]
		}
	}
	return out
}

func dct1D(input []float64) []float64 {
	out := make([]float64, freqSize)
	for k := 0; k < freqSize; k++ {
		var sum float64
		for n := 0; n < freqSize; n++ {
			sum += input[n] * cosTable[k][n]
		}
		out[k] = sum
	}
	return out
}

// pearson computes the Pearson correlation coefficient of two equal-length
// vectors. A zero-variance vector yields 0.
func pearson(a, b []float64) float64 {
	n := float64(len(a))
	if n == 0 || len(a) != len(b) {
		return 0
	}

	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA := sumA / n
	meanB := sumB / n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
