package similarity

import (
	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

// VideoDocFor builds the index document for a processed video. Subject and
// grade come from the highest-confidence mapping unless overridden.
func VideoDocFor(v *types.Video, vector []float32, mappings []types.ConceptMapping, subject string, grade int) VideoDoc {
	doc := VideoDoc{
		VideoID:      v.VideoID,
		Title:        v.Title,
		ChannelID:    v.ChannelID,
		ChannelTitle: v.ChannelTitle,
		Subject:      subject,
		Grade:        grade,
		Vector:       vector,
	}
	var best *types.ConceptMapping
	for i := range mappings {
		if best == nil || mappings[i].Confidence > best.Confidence {
			best = &mappings[i]
		}
	}
	if best != nil {
		if doc.Subject == "" {
			doc.Subject = best.Subject
		}
		if doc.Grade == 0 {
			doc.Grade = best.Class
		}
	}
	return doc
}
