package api

import "testing"

func TestJobManagerLifecycle(t *testing.T) {
	m := NewJobManager()
	job := m.CreateJob([]JobTarget{
		{Name: "semana10.pdf", WeekNumber: 10, Year: 2025},
		{Name: "semana11.pdf", WeekNumber: 11, Year: 2025},
	})
	if job.Status != JobStatusPending || len(job.Files) != 2 {
		t.Fatalf("unexpected new job %+v", job)
	}

	m.MarkProcessing(job.ID)
	m.UpdateFileProgress(job.ID, 0, "generate", "Gerando", 20, 100)
	m.MarkFileComplete(job.ID, 0, DocumentResult{Name: "semana10.pdf", StudyID: 7})
	m.MarkFileError(job.ID, 1, "  ", DocumentResult{Name: "semana11.pdf"})
	m.MarkFinished(job.ID)

	got, ok := m.GetJob(job.ID)
	if !ok {
		t.Fatal("job not found")
	}
	if got.Status != JobStatusComplete {
		t.Errorf("expected complete job, got %s", got.Status)
	}
	if got.Files[0].Result == nil || got.Files[0].Result.Status != FileStatusComplete || got.Files[0].Result.StudyID != 7 {
		t.Errorf("unexpected first file %+v", got.Files[0])
	}
	if got.Files[1].Error != "erro ao processar arquivo" {
		t.Errorf("expected default error message, got %q", got.Files[1].Error)
	}
	if len(got.Results) != 2 || got.Results[1].Status != FileStatusError {
		t.Errorf("unexpected results %+v", got.Results)
	}
}

func TestJobManagerFailsWhenNothingSucceeds(t *testing.T) {
	m := NewJobManager()
	job := m.CreateJob([]JobTarget{{Name: "a.pdf", WeekNumber: 1, Year: 2025}})
	m.MarkFileError(job.ID, 0, "sem texto", DocumentResult{Name: "a.pdf"})
	m.MarkFinished(job.ID)

	got, _ := m.GetJob(job.ID)
	if got.Status != JobStatusFailed || got.Error == "" {
		t.Errorf("expected failed job, got %+v", got)
	}
}

func TestJobSnapshotsAreIsolated(t *testing.T) {
	m := NewJobManager()
	job := m.CreateJob([]JobTarget{{Name: "a.pdf", WeekNumber: 1, Year: 2025}})
	m.MarkFileComplete(job.ID, 0, DocumentResult{Name: "a.pdf"})

	snap, _ := m.GetJob(job.ID)
	snap.Files[0].Result.Name = "changed"
	snap.Results[0].Name = "changed"

	again, _ := m.GetJob(job.ID)
	if again.Files[0].Result.Name != "a.pdf" || again.Results[0].Name != "a.pdf" {
		t.Error("snapshot mutation leaked into the manager")
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		current, total, want int
	}{
		{0, 100, 0},
		{-5, 100, 0},
		{20, 100, 20},
		{150, 100, 100},
		{1, 3, 33},
		{40, 0, 40},
		{400, 0, 100},
	}
	for _, tt := range tests {
		if got := percent(tt.current, tt.total); got != tt.want {
			t.Errorf("percent(%d, %d) = %d, want %d", tt.current, tt.total, got, tt.want)
		}
	}
}
