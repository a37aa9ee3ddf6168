package carshare

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork 无法连接上游（连接失败、超时、取消）
	ErrNetwork = errors.New("No se pudo conectar con el servidor")
	// ErrUnavailable 熔断器打开，请求未发出
	ErrUnavailable = errors.New("El servicio no está disponible temporalmente. Intente más tarde.")
	// ErrUnexpectedResponse 响应不是预期的 {success, data} 结构
	ErrUnexpectedResponse = errors.New("Respuesta inesperada del servidor")
)

// 2xx 但 success=false 且没有附带消息时使用
const msgBackendRejected = "El servidor no pudo procesar la solicitud."

// APIError 上游返回的错误（非 2xx，或 success=false）
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// ClientError 4xx 以及业务拒绝，不计入熔断
func (e *APIError) ClientError() bool {
	return e.Status < http.StatusInternalServerError
}

// StatusMessage 状态码对应的提示信息
func StatusMessage(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "Solicitud inválida. Verifique los datos enviados."
	case status == http.StatusUnauthorized:
		return "No autorizado. Inicie sesión nuevamente."
	case status == http.StatusForbidden:
		return "No tiene permisos para realizar esta acción."
	case status == http.StatusNotFound:
		return "Recurso no encontrado."
	case status == http.StatusConflict:
		return "Conflicto: el recurso ya existe o está en uso."
	case status == http.StatusUnprocessableEntity:
		return "Los datos enviados no son válidos."
	case status == http.StatusTooManyRequests:
		return "Demasiadas solicitudes. Intente nuevamente en unos momentos."
	case status >= http.StatusInternalServerError && status <= 599:
		return "Error del servidor. Intente más tarde."
	default:
		return fmt.Sprintf("Error inesperado (código %d).", status)
	}
}

// UserMessage 返回适合展示给用户的错误信息
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrUnavailable):
		return ErrUnavailable.Error()
	case errors.Is(err, ErrNetwork):
		return ErrNetwork.Error()
	case errors.Is(err, ErrUnexpectedResponse):
		return ErrUnexpectedResponse.Error()
	default:
		return "Error inesperado."
	}
}

// IsNotFound 是否为 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsRejected 后端返回 2xx 但 success=false
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status < http.StatusMultipleChoices
}
