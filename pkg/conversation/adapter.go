package conversation

import "github.com/getzep/entitylink/pkg/models"

// Flatten converts validated conversation turns into the plain records a
// conversation handler annotates. Order and speaker/utterance pairing are
// kept exactly; nothing is filtered or merged.
func Flatten(turns []models.ConversationTurn) []models.Turn {
	flat := make([]models.Turn, len(turns))
	for i, t := range turns {
		flat[i] = models.Turn{
			Speaker:   string(t.Speaker),
			Utterance: t.Utterance,
		}
	}
	return flat
}
