package project

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImpactInc/azkaban/pkg/models"
)

// writeArchive builds a zip archive of name -> content in a temp dir.
func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "project.zip")

	out, err := os.Create(path)
	require.NoError(t, err)

	writer := zip.NewWriter(out)

	for name, content := range files {
		entry, err := writer.Create(name)
		require.NoError(t, err)

		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	require.NoError(t, out.Close())

	return path
}

const ingestFlow = `{
	"id": "ingest",
	"nodes": [
		{"id": "extract", "type": "command", "props_source": "job.properties"},
		{"id": "load", "type": "command"}
	],
	"edges": [{"source": "extract", "target": "load"}],
	"props": [{"source": "job.properties", "properties": {"retries": "3"}}]
}`

func newTestInstaller(t *testing.T) *ArchiveInstaller {
	t.Helper()

	installer, err := NewArchiveInstaller()
	require.NoError(t, err)

	return installer
}

func TestArchiveInstaller_Install(t *testing.T) {
	installer := newTestInstaller(t)
	archive := writeArchive(t, map[string]string{"ingest.flow": ingestFlow})

	project := &models.Project{Name: "etl", Flows: map[string]*models.Flow{}}

	reports, err := installer.ValidateAndInstall(project, archive, "zip", false)
	require.NoError(t, err)

	assert.False(t, reports["schema"].HasErrors())
	assert.False(t, reports["graph"].HasErrors())
	assert.Equal(t, 1, project.Version)

	flow := project.Flow("ingest")
	require.NotNil(t, flow)
	assert.Equal(t, 0, flow.Node("extract").Level)
	assert.Equal(t, 1, flow.Node("load").Level)
}

func TestArchiveInstaller_RejectsNonZip(t *testing.T) {
	installer := newTestInstaller(t)
	project := &models.Project{Name: "etl"}

	_, err := installer.ValidateAndInstall(project, "whatever", "tar.gz", false)
	assert.ErrorIs(t, err, ErrInvalidExtension)
}

func TestArchiveInstaller_EmptyArchive(t *testing.T) {
	installer := newTestInstaller(t)
	archive := writeArchive(t, map[string]string{"readme.txt": "no flows here"})

	project := &models.Project{Name: "etl"}

	_, err := installer.ValidateAndInstall(project, archive, "zip", false)
	assert.ErrorIs(t, err, ErrEmptyArchive)
}

func TestArchiveInstaller_SchemaViolation(t *testing.T) {
	installer := newTestInstaller(t)
	archive := writeArchive(t, map[string]string{
		"broken.flow": `{"nodes": [{"id": "a", "type": "command"}]}`,
	})

	project := &models.Project{Name: "etl", Version: 3}

	reports, err := installer.ValidateAndInstall(project, archive, "zip", false)
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.True(t, reports["schema"].HasErrors())
	assert.Equal(t, 3, project.Version, "a failed install must not bump the version")
}

func TestArchiveInstaller_EdgeToUnknownNode(t *testing.T) {
	installer := newTestInstaller(t)
	archive := writeArchive(t, map[string]string{
		"bad.flow": `{
			"id": "bad",
			"nodes": [{"id": "a", "type": "command"}],
			"edges": [{"source": "a", "target": "ghost"}]
		}`,
	})

	project := &models.Project{Name: "etl"}

	reports, err := installer.ValidateAndInstall(project, archive, "zip", false)
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.Contains(t, reports["graph"].ErrorMsgs[0], "ghost")
}

func TestArchiveInstaller_DuplicateNode(t *testing.T) {
	installer := newTestInstaller(t)
	archive := writeArchive(t, map[string]string{
		"dup.flow": `{
			"id": "dup",
			"nodes": [{"id": "a", "type": "command"}, {"id": "a", "type": "spark"}]
		}`,
	})

	project := &models.Project{Name: "etl"}

	reports, err := installer.ValidateAndInstall(project, archive, "zip", false)
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.Contains(t, reports["graph"].ErrorMsgs[0], `duplicate node id "a"`)
}

func TestArchiveInstaller_Cycle(t *testing.T) {
	installer := newTestInstaller(t)
	archive := writeArchive(t, map[string]string{
		"loop.flow": `{
			"id": "loop",
			"nodes": [{"id": "a", "type": "command"}, {"id": "b", "type": "command"}],
			"edges": [{"source": "a", "target": "b"}, {"source": "b", "target": "a"}]
		}`,
	})

	project := &models.Project{Name: "etl"}

	reports, err := installer.ValidateAndInstall(project, archive, "zip", false)
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.True(t, reports["graph"].HasErrors())
}

func TestArchiveInstaller_DuplicateEdgeAutoFix(t *testing.T) {
	installer := newTestInstaller(t)

	files := map[string]string{
		"dup.flow": `{
			"id": "dup",
			"nodes": [{"id": "a", "type": "command"}, {"id": "b", "type": "command"}],
			"edges": [{"source": "a", "target": "b"}, {"source": "a", "target": "b"}]
		}`,
	}

	// Without auto-fix the duplicate edge is fatal.
	project := &models.Project{Name: "etl"}
	_, err := installer.ValidateAndInstall(project, writeArchive(t, files), "zip", false)
	require.ErrorIs(t, err, ErrInstallFailed)

	// With auto-fix it is dropped and reported as a warning.
	project = &models.Project{Name: "etl"}
	reports, err := installer.ValidateAndInstall(project, writeArchive(t, files), "zip", true)
	require.NoError(t, err)
	assert.NotEmpty(t, reports["graph"].WarningMsgs)
	assert.Len(t, project.Flow("dup").Edges, 1)
}

func TestArchiveInstaller_EmbeddedFlowReference(t *testing.T) {
	installer := newTestInstaller(t)
	archive := writeArchive(t, map[string]string{
		"parent.flow": `{
			"id": "parent",
			"nodes": [{"id": "sub", "type": "flow", "embedded_flow_id": "child"}]
		}`,
		"child.flow": `{
			"id": "child",
			"nodes": [{"id": "task", "type": "command"}]
		}`,
	})

	project := &models.Project{Name: "etl"}

	_, err := installer.ValidateAndInstall(project, archive, "zip", false)
	require.NoError(t, err)
	assert.True(t, project.Flow("child").Embedded)
}

func TestArchiveInstaller_UnknownEmbeddedFlow(t *testing.T) {
	installer := newTestInstaller(t)
	archive := writeArchive(t, map[string]string{
		"parent.flow": `{
			"id": "parent",
			"nodes": [{"id": "sub", "type": "flow", "embedded_flow_id": "missing"}]
		}`,
	})

	project := &models.Project{Name: "etl"}

	reports, err := installer.ValidateAndInstall(project, archive, "zip", false)
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.Contains(t, reports["graph"].ErrorMsgs[0], "missing")
}
