package pipeline

import (
	"strconv"

	"github.com/npratt/pipeboard/internal/cache"
	"github.com/npratt/pipeboard/internal/services"
)

// Cache keys. Keys sharing a leading segment invalidate together, so
// PlanKey(id) covers both the latest plan and plans fetched by id.

func ProjectsKey() cache.Key { return cache.NewKey("projects") }

func ProjectKey(projectID string) cache.Key { return cache.NewKey("project", projectID) }

// AuditKey covers every page of a project's audit log; pass a query to
// address one page.
func AuditKey(projectID string, q ...services.AuditQuery) cache.Key {
	k := cache.NewKey("audit", projectID)
	for _, query := range q {
		k = append(k, strconv.Itoa(query.Page), strconv.Itoa(query.PageSize), query.EventType)
	}
	return k
}

func RequirementsKey(projectID string) cache.Key { return cache.NewKey("requirements", projectID) }

func PlanKey(projectID string) cache.Key { return cache.NewKey("plan", projectID) }

func LatestPlanKey(projectID string) cache.Key { return cache.NewKey("plan", projectID, "latest") }

func PlanByIDKey(projectID, planID string) cache.Key {
	return cache.NewKey("plan", projectID, "id", planID)
}

func PromptsKey(projectID string) cache.Key { return cache.NewKey("prompts", projectID) }

func LatestPromptsKey(projectID string) cache.Key {
	return cache.NewKey("prompts", projectID, "latest")
}
