package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/askpdf/internal/auth"
	"github.com/yourusername/askpdf/internal/user"
)

// FileService はPDFの保存・取得・削除・配信の操作を提供します。
type FileService interface {
	Upload(ctx context.Context, file *multipart.FileHeader, ownerID int64) (*StoredFile, error)
	List(ctx context.Context, ownerID int64) ([]*StoredFile, error)
	Get(ctx context.Context, id, ownerID int64) (*StoredFile, error)
	Delete(ctx context.Context, id, ownerID int64) error
	OpenView(ctx context.Context, id, ownerID int64) (*StoredFile, io.ReadSeekCloser, int64, error)
}

// TokenVerifier はクエリパラメータ経由のセッショントークンを検証します。
type TokenVerifier interface {
	VerifySessionToken(token string) (string, error)
}

// UserResolver はトークンの主体からユーザーを解決します。
type UserResolver interface {
	FindByUsername(ctx context.Context, username string) (*user.User, error)
}

// UploadHandler は POST /pdf/upload のハンドラーを返します。
func UploadHandler(svc FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := currentUser(c)
		if !ok {
			return
		}

		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "PDF file is required",
			})
			return
		}

		stored, err := svc.Upload(c.Request.Context(), file, current.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, stored)
	}
}

// ListHandler は GET /pdf/list のハンドラーを返します。
func ListHandler(svc FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := currentUser(c)
		if !ok {
			return
		}

		files, err := svc.List(c.Request.Context(), current.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, files)
	}
}

// GetHandler は GET /pdf/:id のハンドラーを返します。
func GetHandler(svc FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := currentUser(c)
		if !ok {
			return
		}

		id, ok := parseID(c)
		if !ok {
			return
		}

		file, err := svc.Get(c.Request.Context(), id, current.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, file)
	}
}

// DeleteHandler は DELETE /pdf/:id のハンドラーを返します。
func DeleteHandler(svc FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := currentUser(c)
		if !ok {
			return
		}

		id, ok := parseID(c)
		if !ok {
			return
		}

		if err := svc.Delete(c.Request.Context(), id, current.ID); err != nil {
			respondWithError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// ViewHandler は GET /pdf/:id/view のハンドラーを返します。
// 埋め込みビューアはヘッダーを設定できないため、認証はクエリパラメータの
// トークンで行います。
func ViewHandler(svc FileService, tokens TokenVerifier, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Authentication required",
			})
			return
		}

		username, err := tokens.VerifySessionToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Invalid token",
			})
			return
		}

		current, err := users.FindByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "User not found",
			})
			return
		}

		id, ok := parseID(c)
		if !ok {
			return
		}

		file, reader, size, err := svc.OpenView(c.Request.Context(), id, current.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		defer reader.Close()

		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}

		extraHeaders := map[string]string{
			"Content-Disposition": fmt.Sprintf("inline; filename=%q", file.Filename),
			"Cache-Control":       "private, max-age=3600",
		}
		c.DataFromReader(http.StatusOK, size, contentType, reader, extraHeaders)
	}
}

// currentUser は認証ミドルウェアが設定したユーザーを取り出します。
func currentUser(c *gin.Context) (*user.User, bool) {
	value, exists := c.Get(auth.ContextUserKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "Authentication required",
		})
		return nil, false
	}
	current, ok := value.(*user.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "Authentication required",
		})
		return nil, false
	}
	return current, true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "Invalid PDF id",
		})
		return 0, false
	}
	return id, true
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "PDF not found",
		})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "Request was canceled",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An internal server error occurred",
		})
	}
}
