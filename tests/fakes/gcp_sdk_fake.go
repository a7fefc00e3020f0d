package fakes

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient serves AccessSecretVersion from memory.
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex
	// Versions maps version resource names
	// (projects/X/secrets/Y/versions/latest) to payloads
	Versions map[string][]byte
	// Errors maps version resource names to errors to return
	Errors map[string]error
}

// NewFakeGCPSecretManagerClient creates a new mock Secret Manager client
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Versions: make(map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// AddLatest stores payload as the latest version of project/secret.
func (f *FakeGCPSecretManagerClient) AddLatest(project, secret string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Versions["projects/"+project+"/secrets/"+secret+"/versions/latest"] = payload
}

// AccessSecretVersion mocks the AccessSecretVersion operation
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, exists := f.Errors[req.GetName()]; exists {
		return nil, err
	}
	data, exists := f.Versions[req.GetName()]
	if !exists {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", req.GetName())
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

// FakeTokenSource is an oauth2.TokenSource with a canned result.
type FakeTokenSource struct {
	Err error
}

// Token returns a fixed token or Err.
func (s *FakeTokenSource) Token() (*oauth2.Token, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return &oauth2.Token{AccessToken: "fake-token", Expiry: time.Now().Add(time.Hour)}, nil
}
