package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/sale"
	"github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	settingsdto "github.com/fekuna/omnipos-margin-service/internal/settings/dto"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type stubUseCase struct {
	sale.UseCase
	input   *dto.CreateSaleInput
	channel model.Channel
	err     error
}

func (s *stubUseCase) CreateSale(ctx context.Context, in *dto.CreateSaleInput) (*dto.SaleResult, error) {
	s.input = in
	if s.err != nil {
		return nil, s.err
	}
	return &dto.SaleResult{Sale: &model.Sale{ID: "s1"}}, nil
}

func (s *stubUseCase) SaleDefaults(ctx context.Context, channel model.Channel) (*settingsdto.SaleDefaults, error) {
	s.channel = channel
	return &settingsdto.SaleDefaults{Channel: channel, FeePercent: decimal.RequireFromString("5.5")}, nil
}

func (s *stubUseCase) GetSale(ctx context.Context, id string) (*dto.SaleDetail, error) {
	return nil, sale.ErrNotFound
}

func newRouter(uc sale.UseCase) http.Handler {
	r := chi.NewRouter()
	NewSaleHandler(uc, logger.NewNop()).RegisterRoutes(r)
	return r
}

func TestCreateSale_NullDefaults(t *testing.T) {
	uc := &stubUseCase{}
	rec := httptest.NewRecorder()
	body := `{"product_id":"p1","option_id":"o1","quantity":2,"unit_price":"3000","channel":"smart_store","fee_percent":null}`
	newRouter(uc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if uc.input.FeePercent.Valid || uc.input.PackagingCost.Valid || uc.input.Quantity != 2 {
		t.Fatalf("input = %+v", uc.input)
	}
}

func TestCreateSale_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sale.ErrDuplicate, http.StatusConflict},
		{inventory.ErrBusy, http.StatusConflict},
		{inventory.ErrOptionNotFound, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		newRouter(&stubUseCase{err: tt.err}).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{"quantity":1}`)))
		if rec.Code != tt.want {
			t.Fatalf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestSaleDefaults_RouteIsNotAnID(t *testing.T) {
	uc := &stubUseCase{}
	rec := httptest.NewRecorder()
	newRouter(uc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/defaults?channel=smart_store", nil))

	if rec.Code != http.StatusOK || uc.channel != model.ChannelSmartStore {
		t.Fatalf("status = %d, channel = %q", rec.Code, uc.channel)
	}

	rec = httptest.NewRecorder()
	newRouter(uc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/s9", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing sale status = %d", rec.Code)
	}
}
