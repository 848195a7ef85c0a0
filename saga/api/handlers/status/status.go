package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/open-finance/sagaflow/log"
	"github.com/open-finance/sagaflow/saga"
)

type SagaStatus struct {
	SagaUID       string       `json:"saga_uid"`
	SagaName      string       `json:"saga_name"`
	Status        string       `json:"status"`
	Payload       interface{}  `json:"payload"`
	LastError     string       `json:"last_error,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	ExecutionTime string       `json:"execution_time"`
	Steps         []StepStatus `json:"steps"`
}

type StepStatus struct {
	StepUID    string     `json:"step_uid"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type Filters struct {
	SagaID   string
	SagaName string
	Status   string
}

type StatusService interface {
	GetStatus(ctx context.Context, sagaID string) (*SagaStatus, error)
	GetFilteredBy(ctx context.Context, filters *Filters) ([]SagaStatus, error)
}

func NewStatusService(store saga.Store) StatusService {
	return &statusService{sagaStore: store}
}

type statusService struct {
	sagaStore saga.Store
}

func (s statusService) GetStatus(ctx context.Context, sagaID string) (*SagaStatus, error) {
	exec, err := s.sagaStore.GetByID(ctx, saga.SagaID(sagaID))

	if err != nil {
		return nil, errors.Wrapf(err, "error loading saga '%s'", sagaID)
	}

	if exec == nil {
		return nil, NewResponseError(http.StatusNotFound, errors.Errorf("saga '%s' not found", sagaID))
	}

	status := statusOf(exec)

	return &status, nil
}

func (s statusService) GetFilteredBy(ctx context.Context, filters *Filters) ([]SagaStatus, error) {
	var opts []saga.FilterOption

	if filters.SagaID != "" {
		opts = append(opts, saga.WithSagaID(saga.SagaID(filters.SagaID)))
	}

	if filters.Status != "" {
		opts = append(opts, saga.WithStatus(filters.Status))
	}

	if filters.SagaName != "" {
		opts = append(opts, saga.WithSagaName(filters.SagaName))
	}

	if len(opts) == 0 {
		return nil, NewResponseError(http.StatusBadRequest, errors.Errorf("At least one filter must be specified"))
	}

	executions, err := s.sagaStore.GetByFilter(ctx, opts...)

	if err != nil {
		return nil, errors.WithStack(err)
	}

	statuses := make([]SagaStatus, len(executions))

	for i, exec := range executions {
		statuses[i] = statusOf(exec)
	}

	return statuses, nil
}

func statusOf(exec *saga.Execution) SagaStatus {
	steps := exec.Steps()
	stepStatuses := make([]StepStatus, len(steps))

	for i, step := range steps {
		finishedAt := step.CompletedAt()
		if finishedAt == nil {
			finishedAt = step.FailedAt()
		}

		stepStatuses[i] = StepStatus{
			StepUID:    step.StepID().String(),
			Name:       step.StepName(),
			Status:     step.Status().String(),
			StartedAt:  step.StartedAt(),
			FinishedAt: finishedAt,
			Error:      step.ErrorMessage(),
		}
	}

	return SagaStatus{
		SagaUID:       exec.SagaID().String(),
		SagaName:      exec.SagaName(),
		Status:        exec.Status().String(),
		Payload:       exec.SagaData(),
		LastError:     exec.LastError(),
		StartedAt:     exec.StartedAt(),
		ExecutionTime: exec.ExecutionTime().String(),
		Steps:         stepStatuses,
	}
}

type StatusHandler struct {
	service StatusService
	logger  log.Logger
}

func NewStatusHandler(logger log.Logger, service StatusService) *StatusHandler {
	return &StatusHandler{service: service, logger: logger}
}

func (h *StatusHandler) GetStatus(resp http.ResponseWriter, r *http.Request) {
	sagaID := strings.TrimPrefix(r.URL.Path, "/sagas/")

	if sagaID == "" {
		NewResponseWriterFromErrMsg("Saga id is empty", http.StatusBadRequest).write(resp, h.logger)
		return
	}

	statusResp, err := h.service.GetStatus(r.Context(), sagaID)

	if err != nil {
		NewResponseWriterFromError(err).write(resp, h.logger)
		return
	}

	NewResponseWriter(statusResp, http.StatusOK).write(resp, h.logger)
}

func (h *StatusHandler) GetFilteredBy(resp http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters := &Filters{
		SagaID:   query.Get("sagaId"),
		Status:   query.Get("status"),
		SagaName: query.Get("sagaName"),
	}

	statusesResp, err := h.service.GetFilteredBy(r.Context(), filters)

	if err != nil {
		NewResponseWriterFromError(err).write(resp, h.logger)
		return
	}

	NewResponseWriter(statusesResp, http.StatusOK).write(resp, h.logger)
}

type responseWriter struct {
	body   interface{}
	status int
}

func NewResponseWriterFromError(err error) *responseWriter {
	if respErr, ok := err.(ResponseError); ok {
		return &responseWriter{
			body:   respErr,
			status: respErr.Status(),
		}
	}

	return &responseWriter{
		body:   err,
		status: http.StatusInternalServerError,
	}
}

func NewResponseWriter(body interface{}, status int) *responseWriter {
	return &responseWriter{
		body:   body,
		status: status,
	}
}

func NewResponseWriterFromErrMsg(errMsg string, status int) *responseWriter {
	return NewResponseWriterFromError(NewResponseError(status, errors.New(errMsg)))
}

func (rw *responseWriter) encode() ([]byte, error) {
	var (
		respBody []byte
		err      error
	)

	if respErr, ok := rw.body.(error); ok {
		respBody = []byte(respErr.Error())
	} else {
		respBody, err = json.Marshal(rw.body)
	}

	return respBody, err
}

func (rw *responseWriter) write(resp http.ResponseWriter, logger log.Logger) {
	respBody, err := rw.encode()
	if err != nil {
		logger.Log(log.ErrorLevel, err)
		resp.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp.Header().Set("Content-Type", "application/json")

	resp.WriteHeader(rw.status)

	if _, err = resp.Write(respBody); err != nil {
		logger.Log(log.ErrorLevel, err)
	}
}

type ResponseError struct {
	error
	status int
}

//Status returns http status code
func (e ResponseError) Status() int {
	return e.status
}

func NewResponseError(status int, err error) ResponseError {
	return ResponseError{status: status, error: err}
}
