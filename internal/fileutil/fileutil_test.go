package fileutil

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	disimaging "github.com/disintegration/imaging"

	"github.com/ironsheep/craft-text-detector/internal/ocr"
	"github.com/ironsheep/craft-text-detector/internal/postproc"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGetFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"a.jpg", "b.PNG", "sub/c.jpeg", "sub/d.gif", "e.pgm",
		"mask.bmp", "gt.txt", "gt.xml", "gt.gt",
		"archive.zip", "notes.md",
	} {
		touch(t, filepath.Join(dir, name))
	}

	l, err := GetFiles(dir)
	if err != nil {
		t.Fatalf("GetFiles failed: %v", err)
	}

	wantImages := []string{"a.jpg", "b.PNG", "e.pgm", "sub/c.jpeg", "sub/d.gif"}
	for i := range wantImages {
		wantImages[i] = filepath.Join(dir, filepath.FromSlash(wantImages[i]))
	}
	if !reflect.DeepEqual(l.Images, wantImages) {
		t.Errorf("Images = %v, want %v", l.Images, wantImages)
	}
	if len(l.Masks) != 1 || filepath.Base(l.Masks[0]) != "mask.bmp" {
		t.Errorf("Masks = %v", l.Masks)
	}
	if len(l.GT) != 3 {
		t.Errorf("GT = %v, want 3 files", l.GT)
	}
}

func TestGetFiles_Missing(t *testing.T) {
	if _, err := GetFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestSaveResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	img := disimaging.New(60, 40, color.White)
	polys := []postproc.Polygon{
		{{10.7, 5.2}, {50.9, 5}, {50, 30.99}, {10, 30}},
		{{1, 1}, {8, 1}, {8, 8}},
	}

	paths, err := SaveResult("/data/photo.png", img, polys, dir, []string{"hi", ""})
	if err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	if paths.Text != filepath.Join(dir, "res_photo.txt") {
		t.Errorf("text path %s", paths.Text)
	}
	data, err := os.ReadFile(paths.Text)
	if err != nil {
		t.Fatal(err)
	}
	want := "10,5,50,5,50,30,10,30\r\n1,1,8,1,8,8\r\n"
	if string(data) != want {
		t.Errorf("result text = %q, want %q", data, want)
	}

	out, err := imgio.Open(paths.Image)
	if err != nil {
		t.Fatalf("failed to read result image: %v", err)
	}
	if out.Bounds().Size() != image.Pt(60, 40) {
		t.Errorf("result image size %v", out.Bounds().Size())
	}
	r, g, _, _ := out.At(30, 5).RGBA()
	if r>>8 < 150 || g>>8 > 100 {
		t.Errorf("outline pixel (%d,%d) not red", r>>8, g>>8)
	}

	// The input is left untouched.
	if c := img.NRGBAAt(30, 5); c.G != 255 {
		t.Errorf("input modified: %v", c)
	}
}

func TestSaveMaskAndOverlay(t *testing.T) {
	dir := t.TempDir()
	heat := disimaging.New(20, 10, color.NRGBA{255, 0, 0, 255})
	img := disimaging.New(40, 40, color.NRGBA{0, 0, 255, 255})

	mask, err := SaveMask("x/scan.jpg", heat, dir)
	if err != nil {
		t.Fatalf("SaveMask failed: %v", err)
	}
	if filepath.Base(mask) != "res_scan_mask.jpg" {
		t.Errorf("mask path %s", mask)
	}

	overlay, err := SaveOverlay("x/scan.jpg", img, heat, dir)
	if err != nil {
		t.Fatalf("SaveOverlay failed: %v", err)
	}
	got, err := imgio.Open(overlay)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds().Size() != image.Pt(40, 40) {
		t.Errorf("overlay size %v, want the input size", got.Bounds().Size())
	}
}

func TestSaveJSON(t *testing.T) {
	dir := t.TempDir()
	polys := []postproc.Polygon{{{1, 2}, {3, 4}}}
	rec := NewRecord("in/a.png", image.Pt(100, 50), polys, []ocr.TextRegion{{Text: "word", Confidence: 0.8}})
	rec.InferTime = 0.25

	path, err := SaveJSON("in/a.png", rec, dir)
	if err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if back.Width != 100 || len(back.Regions) != 1 || back.Regions[0].Text != "word" || back.Regions[0].Confidence != 0.8 {
		t.Errorf("record = %+v", back)
	}
	if back.Regions[0].Polygon[1] != [2]float64{3, 4} {
		t.Errorf("polygon = %v", back.Regions[0].Polygon)
	}
}
