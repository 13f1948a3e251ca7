package service

import (
	"context"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/mock"

	"deal_room/internal/domain"
	"deal_room/internal/repository"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Dispatch(ctx context.Context, events []domain.Event) {
	m.Called(ctx, events)
}

func (m *MockNotifier) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Upload(ctx context.Context, upload FileUpload) (domain.FileMetadata, error) {
	args := m.Called(ctx, upload)
	return args.Get(0).(domain.FileMetadata), args.Error(1)
}

func (m *MockFileStorage) PresignGet(ctx context.Context, storageKey, fileName string) (string, error) {
	args := m.Called(ctx, storageKey, fileName)
	return args.String(0), args.Error(1)
}

func (m *MockFileStorage) Delete(ctx context.Context, storageKey string) error {
	args := m.Called(ctx, storageKey)
	return args.Error(0)
}

type MockBroadcast struct {
	mock.Mock
}

func (m *MockBroadcast) Publish(ctx context.Context, channel, event string, payload any) error {
	args := m.Called(ctx, channel, event, payload)
	return args.Error(0)
}

func (m *MockBroadcast) Subscribe(ctx context.Context, channels ...string) repository.Subscription {
	args := m.Called(ctx, channels)
	return args.Get(0).(repository.Subscription)
}

type MockInbox struct {
	mock.Mock
}

func (m *MockInbox) Push(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockInbox) List(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

type MockRateLimitRepo struct {
	mock.Mock
}

func (m *MockRateLimitRepo) CheckLimit(ctx context.Context, key string, limit int) (bool, error) {
	args := m.Called(ctx, key, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimitRepo) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(terms domain.DealTerms, project ProjectContext) (string, error) {
	args := m.Called(terms, project)
	return args.String(0), args.Error(1)
}

type fakeObjectStore struct {
	mock.Mock
}

func (f *fakeObjectStore) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := f.Called(*in.Key, *in.ContentType)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (f *fakeObjectStore) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := f.Called(*in.Key)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://files.example/" + *in.Bucket + "/" + *in.Key + "?sig=1"}, nil
}
