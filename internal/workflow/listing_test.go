package workflow

import (
	"fmt"
	"testing"

	"gigboard/internal/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJobs() []client.Job {
	jobs := []client.Job{{ID: "logo", Title: "Professional Logo Design", Category: "Graphics Design", PostedBy: "Dana"}}
	for i := 0; i < 9; i++ {
		jobs = append(jobs, client.Job{
			ID:       fmt.Sprintf("j%d", i),
			Title:    fmt.Sprintf("Backend task %d", i),
			Category: "Web Development",
			Summary:  "REST endpoints and a database",
			PostedBy: "Sam",
		})
	}
	return jobs
}

func TestFilterLogoAcrossAllCategories(t *testing.T) {
	got := Filter(sampleJobs(), "logo", "All")
	require.Len(t, got, 1)
	assert.Equal(t, "logo", got[0].ID)
}

func TestFilterCombinesTermAndCategory(t *testing.T) {
	jobs := sampleJobs()

	assert.Len(t, Filter(jobs, "", ""), 10)
	assert.Len(t, Filter(jobs, "", "Web Development"), 9)
	assert.Len(t, Filter(jobs, "", "web-development"), 9)
	assert.Empty(t, Filter(jobs, "logo", "Web Development"))
	assert.Len(t, Filter(jobs, "DATABASE", "all"), 9)
	assert.Len(t, Filter(jobs, "dana", ""), 1)
	assert.Empty(t, Filter(jobs, "nothing matches", ""))
}

func TestFilterNeverNil(t *testing.T) {
	assert.NotNil(t, Filter(nil, "x", ""))
}
