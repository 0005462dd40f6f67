// Пакет service — бизнес-логика filehub.
// errors.go — типизированные ошибки сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

// Kind — категория ошибки. Определяет HTTP-статус ответа.
type Kind int

const (
	// KindValidation — некорректный запрос клиента (400).
	KindValidation Kind = iota + 1
	// KindNotFound — запись или blob не найдены (404).
	KindNotFound
	// KindStorage — ошибка blob-хранилища (500).
	KindStorage
	// KindDatabase — ошибка хранилища метаданных (500).
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// Сообщения, отдаваемые клиенту в поле msg.
const (
	MsgNoFile           = "No file uploaded"
	MsgTypeNotAllowed   = "File type not allowed"
	MsgFileTooLarge     = "File too large"
	MsgMultipleFiles    = "Only one file per upload is allowed"
	MsgMalformedUpload  = "Malformed upload request"
	MsgInvalidFileName  = "Invalid file name"
	MsgFileNotFound     = "File not found"
	MsgBlobNotFound     = "File not found on server"
	MsgFileDeleted      = "File deleted successfully"
	MsgUploadFailed     = "Server error during file upload"
	MsgListFailed       = "Server error while retrieving files"
	MsgGetFailed        = "Server error while retrieving file"
	MsgDownloadFailed   = "Server error during file download"
	MsgDeleteFailed     = "Server error during file deletion"
	MsgInvalidParameter = "Invalid parameter"
)

// Error — ошибка сервисного слоя.
// Message безопасен для отдачи клиенту, Err — внутренняя причина (только в лог).
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError извлекает *Error из цепочки. Для прочих ошибок возвращает false.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind проверяет категорию ошибки.
func IsKind(err error, kind Kind) bool {
	se, ok := AsError(err)
	return ok && se.Kind == kind
}

func validationError(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

func notFoundError(msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

func storageError(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

func databaseError(msg string, err error) *Error {
	return &Error{Kind: KindDatabase, Message: msg, Err: err}
}
