package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsole() (*Console, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut, true), &out, &errOut
}

func TestHeader(t *testing.T) {
	c, out, _ := newTestConsole()
	c.Header("Blender Environment Map Baker", "Converting HDR to PBR Cubemaps")

	s := out.String()
	assert.Contains(t, s, "Blender Environment Map Baker")
	assert.Contains(t, s, "Converting HDR to PBR Cubemaps")
	assert.NotContains(t, s, "\x1b[")
}

func TestSettings(t *testing.T) {
	c, out, _ := newTestConsole()
	c.Settings([][2]string{
		{"Environment Map", "sky.exr"},
		{"Base Name", "cubemap"},
	})

	s := out.String()
	for _, want := range []string{"Setting", "Value", "Environment Map", "sky.exr", "Base Name", "cubemap"} {
		assert.Contains(t, s, want)
	}
}

func TestTable(t *testing.T) {
	c, _, _ := newTestConsole()
	s := c.Table([]string{"Output Files", "Size"}, [][]string{
		{"cubemap-specular.ktx2", "12.50 MB"},
		{"cubemap-diffuse.ktx2", "0.02 MB"},
	})

	lines := strings.Split(s, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, s, "cubemap-specular.ktx2")
	assert.Contains(t, s, "0.02 MB")
}

func TestMessages(t *testing.T) {
	c, out, errOut := newTestConsole()

	c.Step("Baking cubemap", "blender -b eq2cube.blend")
	c.Success("done")
	c.Warn("face %s is %dx%d", "0001.exr", 2, 2)
	c.Error("boom")
	c.Raw("tool stderr\n")

	assert.Contains(t, out.String(), "Running: Baking cubemap")
	assert.Contains(t, out.String(), "blender -b eq2cube.blend")
	assert.Contains(t, out.String(), "done")
	assert.Contains(t, errOut.String(), "Warning: face 0001.exr is 2x2")
	assert.Contains(t, errOut.String(), "Error: boom")
	assert.Contains(t, errOut.String(), "tool stderr\n")
}

func TestProgressBarNonTTY(t *testing.T) {
	c, _, errOut := newTestConsole()
	require.False(t, c.IsStderrTTY())

	pb := c.NewProgressBar(10, "Baking cubemap")
	pb.Set(1, "")
	pb.Set(2, "")
	pb.Set(3, "Baking cubemap (mip 2)")
	pb.Set(5, "")
	pb.Finish()

	assert.Equal(t, "Baking cubemap... 10%\n"+
		"Baking cubemap (mip 2)... 30%\n"+
		"Baking cubemap (mip 2)... 50%\n"+
		"Baking cubemap (mip 2)... 100%\n", errOut.String())
}

func TestProgressBarClampAndFinish(t *testing.T) {
	c, _, errOut := newTestConsole()

	pb := c.NewProgressBar(4, "Cropping")
	pb.Set(-3, "")
	pb.Set(99, "")
	assert.Contains(t, errOut.String(), "Cropping... 0%")
	assert.Contains(t, errOut.String(), "Cropping... 100%")

	pb.Finish()
	errOut.Reset()
	pb.Finish()
	pb.Set(1, "")
	assert.Empty(t, errOut.String())
}

func TestProgressBarFinishAtTotal(t *testing.T) {
	c, _, errOut := newTestConsole()

	pb := c.NewProgressBar(2, "Creating KTX files")
	pb.Set(0, "")
	pb.Set(2, "")
	pb.Finish()

	assert.Equal(t, "Creating KTX files... 0%\n"+
		"Creating KTX files... 100%\n", errOut.String())
}

func TestProgressBarAbort(t *testing.T) {
	c, _, errOut := newTestConsole()

	pb := c.NewProgressBar(4, "Cropping")
	pb.Abort()
	pb.Set(2, "")
	pb.Finish()
	assert.Empty(t, errOut.String())
}
