package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	subdto "github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/application/subscription/usecases"
	"github.com/rackgrid/rackgrid/internal/interfaces/http/handlers/testutil"
)

func TestPlanHandler_ListPlans(t *testing.T) {
	handler := NewPlanHandler(usecases.NewListPlansUseCase("USD"))

	c, w := testutil.NewTestContext(http.MethodGet, "/plans", nil)
	handler.ListPlans(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))

	var plans []subdto.PlanDTO
	require.NoError(t, json.Unmarshal(resp.Data, &plans))
	require.Len(t, plans, 5)
	assert.Equal(t, "TRIAL", plans[0].ID)
	assert.Equal(t, "UNLIMITED", plans[4].ID)
	assert.Equal(t, "usd", plans[1].Currency)
	assert.Len(t, plans[1].Prices, 4)
}
