package republish

import (
	"context"
	"fmt"

	"shuttle/internal/manifest"
	"shuttle/internal/services"
	"shuttle/internal/services/deadline"
	"shuttle/internal/session"
)

// environmentKeys fixes the JobInfo environment order so payloads are
// reproducible across submissions.
var environmentKeys = []string{
	session.KeyProject,
	session.KeyAsset,
	session.KeyTask,
	"OPENPYPE_USERNAME",
	"OPENPYPE_PUBLISH_JOB",
	"OPENPYPE_RENDER_JOB",
	"OPENPYPE_REMOTE_JOB",
	"OPENPYPE_LOG_NO_COLORS",
	"OPENPYPE_SG_USER",
}

// submitPublishJob submits the headless publish job that consumes the
// manifest written next to the rendered frames. Submission failures abort
// the run.
func (p *Planner) submitPublishJob(ctx context.Context, instance *manifest.Instance, snapshot map[string]string, jobName string) (string, error) {
	username := p.username()
	metadataPath := manifest.Path(instance.OutputDir, instance.Asset, instance.Subset)

	payload := deadline.Payload{
		JobInfo: map[string]any{
			"Plugin":           p.cfg.Deadline.Plugin,
			"BatchName":        instance.JobBatchName,
			"Name":             jobName,
			"UserName":         username,
			"Comment":          instance.Comment,
			"Department":       "",
			"ChunkSize":        p.cfg.Deadline.ChunkSize,
			"Priority":         p.cfg.Deadline.Priority,
			"Group":            p.cfg.Deadline.Group,
			"Pool":             p.cfg.Deadline.Pool,
			"OutputDirectory0": instance.OutputDir,
		},
		PluginInfo: map[string]any{
			"Version":         "3",
			"Arguments":       fmt.Sprintf("--headless publish %q --targets deadline --targets farm", metadataPath),
			"SingleFrameOnly": "True",
		},
	}

	env := map[string]string{
		"OPENPYPE_USERNAME":      username,
		"OPENPYPE_PUBLISH_JOB":   "1",
		"OPENPYPE_RENDER_JOB":    "0",
		"OPENPYPE_REMOTE_JOB":    "0",
		"OPENPYPE_LOG_NO_COLORS": "1",
		"OPENPYPE_SG_USER":       username,
	}
	for _, key := range []string{session.KeyProject, session.KeyAsset, session.KeyTask} {
		env[key] = snapshot[key]
	}
	payload.SetEnvironment(environmentKeys, env)

	jobID, err := p.farm.SubmitJob(ctx, payload)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "republish", "submit farm job", err)
	}
	return jobID, nil
}
