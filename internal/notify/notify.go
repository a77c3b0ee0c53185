package notify

import (
	"github.com/AhmedNaeem5575/insta-story/internal/domain"
)

// Notifier is the outward collaborator that receives finished batches and
// operator-facing error notices.
type Notifier interface {
	NotifyBatch(batch *domain.StoryBatch, events []string) error
	NotifyError(message string) error
}
