package molitsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/models"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/utils"
)

// PubSubPushEnvelope is the push-subscription wrapper Google delivers.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// CollectPubSubPayload identifies a queued run and its parameters.
type CollectPubSubPayload struct {
	RunId   uint   `json:"run_id"`
	Entity  string `json:"entity"`
	LawdCd  string `json:"lawd_cd,omitempty"`
	DealYmd string `json:"deal_ymd,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// PublishCollectionRun hands a queued run to the Pub/Sub topic so a push
// subscriber executes it out of the request path.
func PublishCollectionRun(ctx context.Context, payload CollectPubSubPayload) error {
	topicName := strings.TrimSpace(os.Getenv("MOLIT_COLLECT_TOPIC"))
	if topicName == "" {
		topicName = "molit-collect"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if utils.EnvBoolDefault("MOLIT_COLLECT_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler executes a queued run delivered by a push subscription.
// Malformed deliveries are acked with 204 so they are not redelivered
// forever; execution failures are acked too because the run ledger already
// records them.
func PubSubPushHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.EnvBoolDefault("ENABLE_MOLIT_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload CollectPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 || payload.Entity == "" {
			c.Status(204)
			return
		}

		ctx := utils.SetTriggeredByInContext(c.Request.Context(), models.CollectionTriggeredSystem)
		_ = svc.processRun(ctx, payload)
		c.Status(204)
	}
}

// processRun executes one queued run. Terminal runs are acked without rework
// so redelivery stays idempotent.
func (s *Service) processRun(ctx context.Context, payload CollectPubSubPayload) error {
	run, err := models.GetCollectionRunByID(ctx, payload.RunId)
	if err != nil {
		return err
	}
	if run == nil {
		return errors.New("unknown collection run")
	}
	switch run.Status {
	case models.CollectionRunStatusSuccess, models.CollectionRunStatusFailed, models.CollectionRunStatusPartial:
		return nil
	}

	switch run.Entity {
	case models.CollectionEntityRegions:
		_, err = s.collectRegionsRun(ctx, run)
	case models.CollectionEntityApartments:
		_, err = s.collectApartmentsRun(ctx, run)
	case models.CollectionEntityApartDetails:
		_, err = s.collectApartDetailsRun(ctx, run, payload.Limit)
	case models.CollectionEntitySales:
		params := SaleParams{LawdCd: payload.LawdCd, DealYmd: payload.DealYmd}
		if err = s.ValidateSaleParams(params); err == nil {
			_, err = s.collectSalesRun(ctx, run, params)
		}
	default:
		err = errors.New("unknown collection entity: " + run.Entity)
	}
	if err != nil {
		config.LogError(s.logger, moduleName, "processRun", "run execution failed", payload, err)
	}
	return err
}
