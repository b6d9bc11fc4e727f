package controller

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"pdf-chat-be/internal/constant"
	"pdf-chat-be/internal/dto"
	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/pkg/logger"
	"pdf-chat-be/internal/pkg/serverutils"
	"pdf-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, logger logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      logger,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Post("/chat", c.Chat)
	r.Post("/chat/stream", c.Stream)
	r.Get("/chat/ws", requireUpgrade, websocket.New(c.serveWebSocket))
	r.Get("/session/:session_id", c.History)
	r.Delete("/session/:session_id", c.ClearSession)
}

func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Chat(ctx.UserContext(), req.SessionId, req.Question)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success chat", res))
}

// Stream answers as server-sent events. Validation and retrieval errors are
// returned as a normal JSON error before any event is written.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// The fiber context is recycled once the handler returns, so the stream
	// owns its own context and cancels it when the writer exits.
	streamCtx, cancel := context.WithCancel(context.Background())
	events, err := c.chatService.ChatStream(streamCtx, req.SessionId, req.Question)
	if err != nil {
		cancel()
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	sessionID := req.SessionId
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		if err := writeSSE(w, events); err != nil {
			c.logger.Info(constant.LogModuleHTTP, "SSE client went away", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}))
	return nil
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	turns, err := c.chatService.History(ctx.UserContext(), sessionID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session history", dto.SessionHistoryResponse{
		SessionId: sessionID,
		Turns:     turns,
	}))
}

func (c *chatController) ClearSession(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	if err := c.chatService.ClearSession(ctx.UserContext(), sessionID); err != nil {
		return err
	}

	return ctx.JSON(dto.ClearSessionResponse{
		Message: fmt.Sprintf("Session %s cleared", sessionID),
	})
}

// writeSSE drains events into w. It returns the first write or flush error;
// the caller then cancels the stream context, which stops the producer.
func writeSSE(w *bufio.Writer, events <-chan entity.StreamEvent) error {
	for ev := range events {
		switch ev.Type {
		case entity.StreamEventToken:
			writeData(w, ev.Content)
		case entity.StreamEventDone:
			writeData(w, constant.StreamDoneMarker)
		case entity.StreamEventError:
			_, msg := serverutils.StatusFor(ev.Err)
			w.WriteString("event: error\n")
			writeData(w, msg)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// writeData frames one event. Embedded newlines become extra data lines,
// which clients join back with "\n".
func writeData(w *bufio.Writer, payload string) {
	for _, line := range strings.Split(payload, "\n") {
		w.WriteString("data: ")
		w.WriteString(line)
		w.WriteString("\n")
	}
	w.WriteString("\n")
}

func requireUpgrade(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

// serveWebSocket answers each {session_id, question} message with one text
// frame per token followed by [DONE], or a single [ERROR] frame.
func (c *chatController) serveWebSocket(conn *websocket.Conn) {
	c.logger.Info(constant.LogModuleHTTP, "WebSocket chat opened", map[string]interface{}{"remote": conn.RemoteAddr().String()})
	defer c.logger.Info(constant.LogModuleHTTP, "WebSocket chat closed", map[string]interface{}{"remote": conn.RemoteAddr().String()})

	for {
		var req dto.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(constant.LogModuleHTTP, "WebSocket read failed", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		if err := c.answerOverWebSocket(conn, req); err != nil {
			return
		}
	}
}

func (c *chatController) answerOverWebSocket(conn *websocket.Conn, req dto.ChatRequest) error {
	sendError := func(err error) error {
		_, msg := serverutils.StatusFor(err)
		return conn.WriteMessage(websocket.TextMessage, []byte(constant.StreamErrorPrefix+" "+msg))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return sendError(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.chatService.ChatStream(ctx, req.SessionId, req.Question)
	if err != nil {
		return sendError(err)
	}

	for ev := range events {
		var werr error
		switch ev.Type {
		case entity.StreamEventToken:
			werr = conn.WriteMessage(websocket.TextMessage, []byte(ev.Content))
		case entity.StreamEventDone:
			werr = conn.WriteMessage(websocket.TextMessage, []byte(constant.StreamDoneMarker))
		case entity.StreamEventError:
			werr = sendError(ev.Err)
		}
		if werr != nil {
			cancel()
			return werr
		}
	}
	return nil
}
