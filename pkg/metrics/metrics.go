// Package metrics scores a reconstructed image against its source.
package metrics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"qimagecompress/internal/models"
)

// ErrEmpty is returned when either image has no pixels.
var ErrEmpty = errors.New("cannot compare empty images")

// histogramBins is the number of intensity bins used for entropy.
const histogramBins = 256

// Compare resamples recon onto the pixel grid of original and computes the
// quality figures. Both images are expected on the same [0, white] scale.
func Compare(original models.Image, recon mat.Matrix, white float64) (models.Metrics, error) {
	if len(original.Pix) == 0 || recon == nil {
		return models.Metrics{}, ErrEmpty
	}
	rr, rc := recon.Dims()
	if rr == 0 || rc == 0 {
		return models.Metrics{}, ErrEmpty
	}

	orig := make([]float64, len(original.Pix))
	for i, v := range original.Pix {
		orig[i] = float64(v)
	}
	rec := Resample(recon, original.Rows, original.Cols)

	rmse := RMSE(orig, rec)
	return models.Metrics{
		MAE:         MAE(orig, rec),
		RMSE:        rmse,
		PSNR:        PSNR(rmse, white),
		SSIM:        SSIM(orig, rec, white),
		EntropyDiff: math.Abs(Entropy(orig, white) - Entropy(rec, white)),
		MI:          MutualInformation(orig, rec),
	}, nil
}

// Resample maps m onto a rows x cols grid by nearest-neighbour lookup and
// returns it flattened row-major.
func Resample(m mat.Matrix, rows, cols int) []float64 {
	mr, mc := m.Dims()
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		sr := r * mr / rows
		for c := 0; c < cols; c++ {
			out[r*cols+c] = m.At(sr, c*mc/cols)
		}
	}
	return out
}

// MAE computes the mean absolute error.
func MAE(original, reconstructed []float64) float64 {
	n := len(original)
	if n != len(reconstructed) || n == 0 {
		return 0
	}
	sum := 0.0
	for i := range original {
		sum += math.Abs(original[i] - reconstructed[i])
	}
	return sum / float64(n)
}

// RMSE computes the root mean square error.
func RMSE(original, reconstructed []float64) float64 {
	n := len(original)
	if n != len(reconstructed) || n == 0 {
		return 0
	}
	mse := 0.0
	for i := range original {
		diff := original[i] - reconstructed[i]
		mse += diff * diff
	}
	return math.Sqrt(mse / float64(n))
}

// PSNR returns the peak signal to noise ratio in dB for a given RMSE. A
// perfect reconstruction gives +Inf.
func PSNR(rmse, white float64) float64 {
	if rmse == 0 {
		return math.Inf(1)
	}
	return 20 * math.Log10(white/rmse)
}

// SSIM computes the global structural similarity index over the whole
// image, with dynamic range white.
func SSIM(original, reconstructed []float64, white float64) float64 {
	const k1 = 0.01
	const k2 = 0.03

	n := len(original)
	if n != len(reconstructed) || n == 0 {
		return 0
	}

	c1 := (k1 * white) * (k1 * white)
	c2 := (k2 * white) * (k2 * white)

	muX := stat.Mean(original, nil)
	muY := stat.Mean(reconstructed, nil)

	var sigmaX, sigmaY, sigmaXY float64
	if n > 1 {
		sigmaX = stat.Variance(original, nil)
		sigmaY = stat.Variance(reconstructed, nil)
		sigmaXY = stat.Covariance(original, reconstructed, nil)
	}

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// Entropy computes the Shannon entropy in bits of a 256-bin histogram of
// data over [0, white]. Values outside the range fall in the edge bins.
func Entropy(data []float64, white float64) float64 {
	n := len(data)
	if n == 0 || white <= 0 {
		return 0
	}

	hist := make([]float64, histogramBins)
	binWidth := white / histogramBins
	for _, v := range data {
		bin := int(v / binWidth)
		if bin >= histogramBins {
			bin = histogramBins - 1
		} else if bin < 0 {
			bin = 0
		}
		hist[bin]++
	}

	entropy := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(n)
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// MutualInformation estimates the mutual information in nats under a
// bivariate Gaussian model: 0.5*log(varX*varY / (varX*varY - cov^2)).
// It is 0 when either input is constant, and +Inf for perfectly
// correlated inputs.
func MutualInformation(original, reconstructed []float64) float64 {
	n := len(original)
	if n != len(reconstructed) || n < 2 {
		return 0
	}

	varX := stat.Variance(original, nil)
	varY := stat.Variance(reconstructed, nil)
	if varX <= 0 || varY <= 0 {
		return 0
	}
	cov := stat.Covariance(original, reconstructed, nil)
	det := varX*varY - cov*cov
	if det <= 0 {
		return math.Inf(1)
	}
	return 0.5 * math.Log(varX*varY/det)
}
