package project

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ImpactInc/azkaban/pkg/flowgraph"
	"github.com/ImpactInc/azkaban/pkg/log"
	"github.com/ImpactInc/azkaban/pkg/models"
)

// flowFileSuffix marks flow definition documents inside the archive.
const flowFileSuffix = ".flow"

// flowSchema is the JSON Schema every flow definition must satisfy before
// any graph-level checks run.
const flowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "nodes"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "condition": {"type": "string"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "embedded_flow_id": {"type": "string"},
          "job_source": {"type": "string"},
          "props_source": {"type": "string"},
          "condition": {"type": "string"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1}
        }
      }
    },
    "props": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source"],
        "properties": {
          "source": {"type": "string", "minLength": 1},
          "inherited_source": {"type": "string"},
          "properties": {"type": "object", "additionalProperties": {"type": "string"}}
        }
      }
    }
  }
}`

// Installer validates a project archive and, when it is clean, replaces the
// project's flow set with its contents.
type Installer interface {
	ValidateAndInstall(project *models.Project, archivePath, extension string, autoFix bool) (map[string]*models.ValidationReport, error)
}

// ArchiveInstaller loads flow definitions from a zip archive.
type ArchiveInstaller struct {
	schema *gojsonschema.Schema
	logger *slog.Logger
}

func NewArchiveInstaller() (*ArchiveInstaller, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(flowSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling flow schema: %w", err)
	}

	return &ArchiveInstaller{
		schema: schema,
		logger: log.WithModule("installer"),
	}, nil
}

// ValidateAndInstall runs every validator over the archive and installs the
// new flow set when no validator reports an error. Reports are always
// returned, clean or not, so callers can surface warnings.
func (i *ArchiveInstaller) ValidateAndInstall(project *models.Project, archivePath, extension string, autoFix bool) (map[string]*models.ValidationReport, error) {
	if extension != "zip" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExtension, extension)
	}

	reports := make(map[string]*models.ValidationReport)

	flows, schemaReport, err := i.loadFlows(archivePath)
	if err != nil {
		return nil, err
	}

	reports["schema"] = schemaReport

	if !schemaReport.HasErrors() {
		reports["graph"] = i.validateGraphs(flows, autoFix)
	}

	for _, report := range reports {
		if report.HasErrors() {
			return reports, fmt.Errorf("%w: archive validation reported errors", ErrInstallFailed)
		}
	}

	if len(flows) == 0 {
		return reports, ErrEmptyArchive
	}

	project.Flows = flows
	project.Version++
	project.UpdatedAt = time.Now().UTC()

	i.logger.Info("Installed project archive",
		"project", project.Name, "version", project.Version, "flows", len(flows))

	return reports, nil
}

// loadFlows parses every flow document in the archive, validating each
// against the flow schema first.
func (i *ArchiveInstaller) loadFlows(archivePath string) (map[string]*models.Flow, *models.ValidationReport, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	defer reader.Close()

	report := &models.ValidationReport{}
	flows := make(map[string]*models.Flow)

	for _, file := range reader.File {
		if !strings.HasSuffix(file.Name, flowFileSuffix) || file.FileInfo().IsDir() {
			continue
		}

		data, err := readArchiveFile(file)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidArchive, file.Name, err)
		}

		result, err := i.schema.Validate(gojsonschema.NewBytesLoader(data))
		if err != nil {
			report.AddError(fmt.Sprintf("%s: not a JSON document: %v", file.Name, err))

			continue
		}

		if !result.Valid() {
			for _, desc := range result.Errors() {
				report.AddError(fmt.Sprintf("%s: %s", file.Name, desc.String()))
			}

			continue
		}

		var flow models.Flow
		if err := json.Unmarshal(data, &flow); err != nil {
			report.AddError(fmt.Sprintf("%s: %v", file.Name, err))

			continue
		}

		if _, exists := flows[flow.ID]; exists {
			report.AddError(fmt.Sprintf("duplicate flow id %q in %s", flow.ID, file.Name))

			continue
		}

		flow.Embedded = strings.Contains(path.Dir(file.Name), "embedded")
		flows[flow.ID] = &flow
	}

	return flows, report, nil
}

func readArchiveFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// validateGraphs runs structural checks over the parsed flow set: node and
// edge integrity, embedded flow references, and dependency levels.
func (i *ArchiveInstaller) validateGraphs(flows map[string]*models.Flow, autoFix bool) *models.ValidationReport {
	report := &models.ValidationReport{}

	ids := make([]string, 0, len(flows))
	for id := range flows {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		flow := flows[id]
		i.validateFlow(flow, flows, autoFix, report)
	}

	return report
}

func (i *ArchiveInstaller) validateFlow(flow *models.Flow, flows map[string]*models.Flow, autoFix bool, report *models.ValidationReport) {
	nodes := make(map[string]struct{}, len(flow.Nodes))

	for _, node := range flow.Nodes {
		if _, dup := nodes[node.ID]; dup {
			report.AddError(fmt.Sprintf("flow %s: duplicate node id %q", flow.ID, node.ID))
		}

		nodes[node.ID] = struct{}{}

		if node.Type == models.JobTypeFlow {
			if node.EmbeddedFlowID == "" {
				report.AddError(fmt.Sprintf("flow %s: node %s has no embedded flow reference", flow.ID, node.ID))
			} else if embedded, ok := flows[node.EmbeddedFlowID]; !ok {
				report.AddError(fmt.Sprintf("flow %s: node %s references unknown flow %q", flow.ID, node.ID, node.EmbeddedFlowID))
			} else {
				embedded.Embedded = true
			}
		}
	}

	seen := make(map[models.Edge]struct{}, len(flow.Edges))
	kept := flow.Edges[:0]

	for _, edge := range flow.Edges {
		if _, ok := nodes[edge.Source]; !ok {
			report.AddError(fmt.Sprintf("flow %s: edge references unknown node %q", flow.ID, edge.Source))

			continue
		}

		if _, ok := nodes[edge.Target]; !ok {
			report.AddError(fmt.Sprintf("flow %s: edge references unknown node %q", flow.ID, edge.Target))

			continue
		}

		if _, dup := seen[*edge]; dup {
			if autoFix {
				report.AddWarning(fmt.Sprintf("flow %s: dropped duplicate edge %s->%s", flow.ID, edge.Source, edge.Target))

				continue
			}

			report.AddError(fmt.Sprintf("flow %s: duplicate edge %s->%s", flow.ID, edge.Source, edge.Target))

			continue
		}

		seen[*edge] = struct{}{}
		kept = append(kept, edge)
	}

	flow.Edges = kept

	if report.HasErrors() {
		return
	}

	if err := flowgraph.ComputeLevels(flow); err != nil {
		report.AddError(fmt.Sprintf("flow %s: %v", flow.ID, err))
	}
}
