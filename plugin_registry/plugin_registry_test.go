package plugin_registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/serisow/vibeveed/pipeline"
	"github.com/serisow/vibeveed/pipeline_type"
	"github.com/serisow/vibeveed/plugin_registry"
)

type mockAssetStore struct{}

func (m *mockAssetStore) Upload(ctx context.Context, req pipeline_type.UploadRequest) (pipeline_type.UploadResult, error) {
	return pipeline_type.UploadResult{SecureURL: "https://assets.local/" + req.Filename}, nil
}

type mockNotifier struct {
	name string
}

func (m *mockNotifier) Name() string {
	return m.name
}

func (m *mockNotifier) Notify(ctx context.Context, result *pipeline_type.ProcessingResult) error {
	return nil
}

func TestRegisterAndBuildAssetStore(t *testing.T) {
	registry := plugin_registry.NewPluginRegistry()

	built := 0
	registry.RegisterAssetStore("mock", func(ctx context.Context) (pipeline.AssetStore, error) {
		built++
		return &mockAssetStore{}, nil
	})

	if built != 0 {
		t.Fatalf("Expected factory to be lazy, it was called %d times", built)
	}

	store, err := registry.NewAssetStore(context.Background(), "mock")
	if err != nil {
		t.Fatalf("Expected to build asset store, got error: %v", err)
	}

	result, _ := store.Upload(context.Background(), pipeline_type.UploadRequest{Filename: "cat.png"})
	if result.SecureURL != "https://assets.local/cat.png" {
		t.Errorf("Expected upload through registered store, got '%s'", result.SecureURL)
	}
}

func TestUnknownAssetStore(t *testing.T) {
	registry := plugin_registry.NewPluginRegistry()

	_, err := registry.NewAssetStore(context.Background(), "ftp")
	if err == nil {
		t.Fatal("Expected error when building unregistered asset store, got nil")
	}

	expectedErrorMsg := "unknown asset store: ftp"
	if err.Error() != expectedErrorMsg {
		t.Errorf("Expected error '%s', got '%s'", expectedErrorMsg, err.Error())
	}
}

func TestAssetStoreFactoryError(t *testing.T) {
	registry := plugin_registry.NewPluginRegistry()
	registry.RegisterAssetStore("broken", func(ctx context.Context) (pipeline.AssetStore, error) {
		return nil, errors.New("missing credentials")
	})

	if _, err := registry.NewAssetStore(context.Background(), "broken"); err == nil {
		t.Fatal("Expected factory error to be returned")
	}
}

func TestRegisterAndGetNotifier(t *testing.T) {
	registry := plugin_registry.NewPluginRegistry()

	sms := &mockNotifier{name: "sms"}
	webhook := &mockNotifier{name: "webhook"}
	registry.RegisterNotifier(webhook)
	registry.RegisterNotifier(sms)

	notifier, ok := registry.GetNotifier("sms")
	if !ok {
		t.Fatal("Expected to retrieve registered notifier, got false")
	}
	if notifier != sms {
		t.Errorf("Expected retrieved notifier to be the same as registered notifier")
	}

	all := registry.Notifiers()
	if len(all) != 2 || all[0].Name() != "sms" || all[1].Name() != "webhook" {
		t.Errorf("Expected notifiers ordered by name, got %v", all)
	}
}

func TestGetUnregisteredNotifier(t *testing.T) {
	registry := plugin_registry.NewPluginRegistry()

	_, ok := registry.GetNotifier("kafka")
	if ok {
		t.Fatal("Expected to not find unregistered notifier, but got true")
	}
}
