package ktx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bloodmagesoftware/blender-envmap/blender"
	"github.com/bloodmagesoftware/blender-envmap/oiio"
	"github.com/bloodmagesoftware/blender-envmap/tools"
)

// Encoding settings shared by both textures.
const (
	VkFormat      = "R16G16B16A16_SFLOAT"
	TransferFunc  = "linear"
	ZstdLevel     = 3
	FileExtension = ".ktx2"
)

// Kind identifies which of the two textures is produced.
type Kind string

const (
	Specular Kind = "specular"
	Diffuse  Kind = "diffuse"
)

// Kinds lists the textures in the order they are created.
var Kinds = []Kind{Specular, Diffuse}

// OutputPath returns <dir>/<name>-<kind>.ktx2.
func OutputPath(dir, name string, kind Kind) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, kind, FileExtension))
}

// Job describes one `ktx create` invocation.
type Job struct {
	Kind   Kind
	Levels int
	Faces  []string // input faces, mip-major, six per level
	Output string
}

// SpecularJob collects the faces of every specular mip level.
func SpecularJob(croppedDir, outputDir, name string) Job {
	faces := make([]string, 0, blender.SpecularLevels*oiio.FacesPerCube)
	for level := 0; level < blender.SpecularLevels; level++ {
		faces = append(faces, oiio.FaceFiles(oiio.MipDir(croppedDir, level))...)
	}
	return Job{
		Kind:   Specular,
		Levels: blender.SpecularLevels,
		Faces:  faces,
		Output: OutputPath(outputDir, name, Specular),
	}
}

// DiffuseJob collects the six diffuse faces.
func DiffuseJob(croppedDir, outputDir, name string) Job {
	return Job{
		Kind:   Diffuse,
		Levels: 1,
		Faces:  oiio.FaceFiles(oiio.DiffuseDir(croppedDir)),
		Output: OutputPath(outputDir, name, Diffuse),
	}
}

// Args builds the ktx command line for the job.
func (j Job) Args() []string {
	args := []string{
		"create",
		"--format", VkFormat,
		"--assign-tf", TransferFunc,
		"--cubemap",
		"--zstd", strconv.Itoa(ZstdLevel),
		"--levels", strconv.Itoa(j.Levels),
	}
	args = append(args, j.Faces...)
	return append(args, j.Output)
}

// Artifact is a texture written by Create.
type Artifact struct {
	Kind Kind
	Path string
	Size int64
}

// SizeMB returns the file size in mebibytes.
func (a Artifact) SizeMB() float64 {
	return float64(a.Size) / (1024 * 1024)
}

// Create runs `ktx create` for the job.
func Create(ctx context.Context, toolPath string, job Job) (*Artifact, error) {
	var missing []string
	for _, f := range job.Faces {
		if _, err := os.Stat(f); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing %d %s face(s): %s", len(missing), job.Kind, strings.Join(missing, ", "))
	}

	if _, err := tools.Run(ctx, tools.Cmd{
		Tool: tools.KTX,
		Path: toolPath,
		Args: job.Args(),
	}); err != nil {
		return nil, err
	}

	info, err := os.Stat(job.Output)
	if err != nil {
		return nil, fmt.Errorf("ktx reported success but %s is missing: %w", job.Output, err)
	}

	return &Artifact{Kind: job.Kind, Path: job.Output, Size: info.Size()}, nil
}
