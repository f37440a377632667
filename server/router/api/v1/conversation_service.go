package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/recollecthq/recollect/server/compare"
	"github.com/recollecthq/recollect/server/ingest"
	"github.com/recollecthq/recollect/store"
)

type conversationResponse struct {
	UID          string         `json:"uid"`
	ExternalID   *string        `json:"external_id"`
	Title        string         `json:"title"`
	MessageCount int32          `json:"message_count"`
	Metadata     map[string]any `json:"metadata"`
	Archived     bool           `json:"archived"`
	CreatedTs    int64          `json:"created_ts"`
	UpdatedTs    int64          `json:"updated_ts"`
}

type messageResponse struct {
	UID            string  `json:"uid"`
	Role           string  `json:"role"`
	Content        string  `json:"content"`
	SequenceNumber int32   `json:"sequence_number"`
	Model          *string `json:"model,omitempty"`
	Tokens         *int32  `json:"tokens,omitempty"`
	CreatedTs      int64   `json:"created_ts"`
}

func toConversationResponse(conversation *store.Conversation) *conversationResponse {
	return &conversationResponse{
		UID:          conversation.UID,
		ExternalID:   conversation.ExternalID,
		Title:        conversation.Title,
		MessageCount: conversation.MessageCount,
		Metadata:     conversation.Metadata,
		Archived:     conversation.Archived,
		CreatedTs:    conversation.CreatedTs,
		UpdatedTs:    conversation.UpdatedTs,
	}
}

// CreateConversation ingests a single conversation payload.
func (s *APIV1Service) CreateConversation(c echo.Context) error {
	ctx := c.Request().Context()
	payload := &ingest.ConversationPayload{}
	if err := c.Bind(payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	result := s.Merger.MergeBatch(ctx, currentUserID(c), []ingest.ConversationPayload{*payload})
	if result.Failed > 0 || len(result.Conversations) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation payload")
	}
	status := http.StatusOK
	if result.Created > 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, toConversationResponse(result.Conversations[0]))
}

type batchResponse struct {
	Created       int                     `json:"created"`
	Updated       int                     `json:"updated"`
	Failed        int                     `json:"failed"`
	Conversations []*conversationResponse `json:"conversations"`
}

// BatchConversations ingests a batch of conversation payloads. Item failures
// are counted, never fatal.
func (s *APIV1Service) BatchConversations(c echo.Context) error {
	ctx := c.Request().Context()
	request := struct {
		Conversations []ingest.ConversationPayload `json:"conversations"`
	}{}
	if err := c.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	result := s.Merger.MergeBatch(ctx, currentUserID(c), request.Conversations)
	response := &batchResponse{
		Created:       result.Created,
		Updated:       result.Updated,
		Failed:        result.Failed,
		Conversations: make([]*conversationResponse, len(result.Conversations)),
	}
	for i, conversation := range result.Conversations {
		response.Conversations[i] = toConversationResponse(conversation)
	}
	return c.JSON(http.StatusOK, response)
}

// ListConversations lists the caller's conversations, newest first.
func (s *APIV1Service) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUserID(c)
	find := &store.FindConversation{CreatorID: &userID}
	if limit, offset, err := parsePagination(c); err != nil {
		return err
	} else {
		find.Limit = limit
		find.Offset = offset
	}

	list, err := s.Store.ListConversations(ctx, find)
	if err != nil {
		return toHTTPError(err)
	}
	response := make([]*conversationResponse, len(list))
	for i, conversation := range list {
		response[i] = toConversationResponse(conversation)
	}
	return c.JSON(http.StatusOK, response)
}

// GetConversation returns one conversation with its messages.
func (s *APIV1Service) GetConversation(c echo.Context) error {
	ctx := c.Request().Context()
	conversation, err := s.getOwnedConversation(c)
	if err != nil {
		return err
	}

	messages, err := s.Store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversation.ID})
	if err != nil {
		return toHTTPError(err)
	}
	messageResponses := make([]*messageResponse, len(messages))
	for i, message := range messages {
		messageResponses[i] = &messageResponse{
			UID:            message.UID,
			Role:           string(message.Role),
			Content:        message.Content,
			SequenceNumber: message.SequenceNumber,
			Model:          message.Model,
			Tokens:         message.Tokens,
			CreatedTs:      message.CreatedTs,
		}
	}
	return c.JSON(http.StatusOK, struct {
		*conversationResponse
		Messages []*messageResponse `json:"messages"`
	}{toConversationResponse(conversation), messageResponses})
}

type updateConversationRequest struct {
	Title    *string        `json:"title"`
	Metadata map[string]any `json:"metadata"`
	Archived *bool          `json:"archived"`
}

// UpdateConversation patches title, metadata, or archived state.
func (s *APIV1Service) UpdateConversation(c echo.Context) error {
	ctx := c.Request().Context()
	conversation, err := s.getOwnedConversation(c)
	if err != nil {
		return err
	}

	request := &updateConversationRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	update := &store.UpdateConversation{
		ID:       conversation.ID,
		Title:    request.Title,
		Archived: request.Archived,
	}
	if request.Metadata != nil {
		merged := make(map[string]any, len(conversation.Metadata)+len(request.Metadata))
		for key, value := range conversation.Metadata {
			merged[key] = value
		}
		for key, value := range request.Metadata {
			merged[key] = value
		}
		update.Metadata = merged
	}

	updated, err := s.Store.UpdateConversation(ctx, update)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toConversationResponse(updated))
}

// DeleteConversation soft-deletes by default; ?hard=true removes the row and
// cascades to messages and embeddings.
func (s *APIV1Service) DeleteConversation(c echo.Context) error {
	ctx := c.Request().Context()
	conversation, err := s.getOwnedConversation(c)
	if err != nil {
		return err
	}

	if c.QueryParam("hard") == "true" {
		if err := s.Store.DeleteConversation(ctx, &store.DeleteConversation{ID: conversation.ID}); err != nil {
			return toHTTPError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	deleted := true
	deletedTs := time.Now().Unix()
	if _, err := s.Store.UpdateConversation(ctx, &store.UpdateConversation{
		ID:        conversation.ID,
		Deleted:   &deleted,
		DeletedTs: &deletedTs,
	}); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type compareRequest struct {
	LeftUID  string `json:"left_uid"`
	RightUID string `json:"right_uid"`
	MaxTurns int    `json:"max_turns"`
}

// CompareConversations scores two of the caller's conversations turn by turn.
func (s *APIV1Service) CompareConversations(c echo.Context) error {
	ctx := c.Request().Context()
	request := &compareRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if request.LeftUID == "" || request.RightUID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "left_uid and right_uid are required")
	}
	if request.MaxTurns == 0 {
		request.MaxTurns = compare.MaxTurns
	}

	result, err := s.Comparator.CompareTurns(ctx, currentUserID(c), request.LeftUID, request.RightUID, request.MaxTurns)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) getOwnedConversation(c echo.Context) (*store.Conversation, error) {
	ctx := c.Request().Context()
	uid := c.Param("uid")
	userID := currentUserID(c)
	conversation, err := s.Store.GetConversation(ctx, &store.FindConversation{
		UID:       &uid,
		CreatorID: &userID,
	})
	if err != nil {
		return nil, toHTTPError(err)
	}
	if conversation == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return conversation, nil
}
