package job

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/subcat/internal/jobfile"
	"github.com/aliskhannn/subcat/internal/model"
)

type fakeService struct {
	jobs []model.Job
	err  error
}

func (s *fakeService) ProcessJob(_ context.Context, job model.Job) (model.JobResult, error) {
	s.jobs = append(s.jobs, job)
	return model.JobResult{ID: job.ID, Status: model.StatusProcessed}, s.err
}

const message = `{
  "id": "0b9a2f6c-3f1e-4c36-9c7e-9a1d3c0f5e11",
  "imgs": [{"path": "a.png", "offsetY": 0, "width": 10, "height": 10}],
  "dir": "out",
  "filename": "merged",
  "format": {"Jpg": 90}
}`

func TestHandle(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc)

	require.NoError(t, h.Handle(context.Background(), kafka.Message{Value: []byte(message)}))

	require.Len(t, svc.jobs, 1)
	assert.Equal(t, "0b9a2f6c-3f1e-4c36-9c7e-9a1d3c0f5e11", svc.jobs[0].ID.String())
	assert.Equal(t, model.JPEG(90), svc.jobs[0].Format)
	assert.Equal(t, "merged.jpg", svc.jobs[0].OutputName())
}

func TestHandle_BadMessage(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc)

	err := h.Handle(context.Background(), kafka.Message{Value: []byte(`{"imgs": 3}`)})
	assert.ErrorIs(t, err, jobfile.ErrInvalidJob)
	assert.Empty(t, svc.jobs)
}

func TestHandle_ServiceError(t *testing.T) {
	boom := errors.New("db down")
	h := NewHandler(&fakeService{err: boom})

	err := h.Handle(context.Background(), kafka.Message{Value: []byte(message)})
	assert.ErrorIs(t, err, boom)
}
