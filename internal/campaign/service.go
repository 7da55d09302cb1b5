package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

type logStore interface {
	Insert(ctx context.Context, record *models.CampaignLogRecord) error
}

// Service records campaign analytics events.
type Service struct {
	logs   logStore
	logger *log.Logger
}

func NewService(logs logStore, logger *log.Logger) *Service {
	return &Service{logs: logs, logger: logger}
}

// LogBounced writes a "Bounced" log entry for a campaign. The target is the
// recipient record the queue item was addressed to.
func (s *Service) LogBounced(ctx context.Context, campaignID string, item *models.QueueItem, target *repository.EntityRef, address string, isHard bool) error {
	detail, err := json.Marshal(map[string]bool{"isHard": isHard})
	if err != nil {
		return fmt.Errorf("failed to encode bounce detail: %w", err)
	}
	data := string(detail)

	record := &models.CampaignLogRecord{
		CampaignID:   campaignID,
		Action:       models.CampaignLogActionBounced,
		QueueItemID:  &item.ID,
		TargetType:   &target.Type,
		TargetID:     &target.ID,
		EmailAddress: &address,
		Data:         &data,
		IsTest:       item.IsTest,
		ActionDate:   time.Now(),
	}
	if err := s.logs.Insert(ctx, record); err != nil {
		return fmt.Errorf("failed to log bounce for campaign %s: %w", campaignID, err)
	}
	if s.logger != nil {
		s.logger.Printf("campaign: logged bounce campaign=%s queueItem=%s hard=%t", campaignID, item.ID, isHard)
	}
	return nil
}
