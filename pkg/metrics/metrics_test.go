package metrics

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"qimagecompress/internal/models"
)

func gradient(t *testing.T, rows, cols int) models.Image {
	t.Helper()
	pix := make([]uint32, rows*cols)
	for i := range pix {
		pix[i] = uint32(i * 255 / (len(pix) - 1))
	}
	img, err := models.NewImage(rows, cols, pix)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestCompareIdentical(t *testing.T) {
	img := gradient(t, 8, 8)

	m, err := Compare(img, img.Dense(), 255)
	if err != nil {
		t.Fatal(err)
	}
	if m.MAE != 0 || m.RMSE != 0 {
		t.Errorf("expected zero error, got MAE=%f RMSE=%f", m.MAE, m.RMSE)
	}
	if !math.IsInf(m.PSNR, 1) {
		t.Errorf("expected infinite PSNR, got %f", m.PSNR)
	}
	if math.Abs(m.SSIM-1) > 1e-9 {
		t.Errorf("expected SSIM 1, got %f", m.SSIM)
	}
	if m.EntropyDiff != 0 {
		t.Errorf("expected zero entropy difference, got %f", m.EntropyDiff)
	}
}

func TestCompareOffset(t *testing.T) {
	img := gradient(t, 4, 4)
	recon := img.Dense()
	recon.Apply(func(_, _ int, v float64) float64 { return v + 10 }, recon)

	m, err := Compare(img, recon, 255)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.MAE-10) > 1e-9 || math.Abs(m.RMSE-10) > 1e-9 {
		t.Errorf("expected MAE and RMSE 10, got %f and %f", m.MAE, m.RMSE)
	}
	if want := 20 * math.Log10(25.5); math.Abs(m.PSNR-want) > 1e-9 {
		t.Errorf("expected PSNR %f, got %f", want, m.PSNR)
	}
	if m.SSIM >= 1 {
		t.Errorf("expected SSIM below 1, got %f", m.SSIM)
	}
}

func TestCompareResamples(t *testing.T) {
	img, _ := models.NewImage(4, 4, []uint32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	})
	recon := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	m, err := Compare(img, recon, 4)
	if err != nil {
		t.Fatal(err)
	}
	if m.MAE != 0 {
		t.Errorf("expected exact match after resampling, got MAE %f", m.MAE)
	}
}

func TestCompareEmpty(t *testing.T) {
	if _, err := Compare(models.Image{}, mat.NewDense(1, 1, nil), 255); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestEntropy(t *testing.T) {
	if e := Entropy([]float64{5, 5, 5, 5}, 255); e != 0 {
		t.Errorf("constant data should have zero entropy, got %f", e)
	}
	if e := Entropy([]float64{0, 255}, 255); math.Abs(e-1) > 1e-12 {
		t.Errorf("two equiprobable values should have 1 bit, got %f", e)
	}
}

func TestMutualInformation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 1, 4, 3, 5}
	if mi := MutualInformation(x, y); mi <= 0 || math.IsInf(mi, 0) {
		t.Errorf("expected finite positive MI, got %f", mi)
	}
	if mi := MutualInformation(x, []float64{3, 3, 3, 3, 3}); mi != 0 {
		t.Errorf("expected zero MI against a constant, got %f", mi)
	}
}
