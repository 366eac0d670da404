// Package blend turns a finished formulation into a real product: it posts
// the blend to the production ordering API and returns the resulting product
// details (URL, price, nutritional label) for the consultant to present.
package blend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tailorblend/consultant-api/internal/catalog"
)

const (
	defaultAPIURL = "https://api.tailorblend.co.za/api/v1/blend/aicreateblend"

	// The production API is called against a fixed test profile; the real
	// user identity travels in the profile name fields only.
	testProfileID    = 641221
	testProfileEmail = "ai.consultant@tailorblend.co.za"

	// templateID is fixed by the ordering backend for AI-created blends.
	templateID = "31"

	defaultServings      = 30
	defaultMaxPrice      = 3000.0
	defaultSenderAccount = "orders.tailorblend.co.za"
	defaultReferrer      = "AI_CONSULTANT"

	requestTimeout = 30 * time.Second
)

// Request is one blend the consultant wants created.
type Request struct {
	UserFirstName string `json:"user_first_name"`
	UserLastName  string `json:"user_last_name"`
	UserEmail     string `json:"user_email"`
	UserGender    string `json:"user_gender"`
	UserAge       int    `json:"user_age"`

	BlendDescription string `json:"blend_description"`
	FormulationNotes string `json:"formulation_notes"`
	BlendName        string `json:"blend_name"`

	BaseMixID        int     `json:"base_mix_id"`
	MaxPrice         float64 `json:"max_price"`
	NumberOfServings int     `json:"number_of_servings"`

	AddMixIDs   []int        `json:"add_mix_ids"`
	Ingredients []Ingredient `json:"ingredients"`
}

// Ingredient is one active ingredient of a blend, keyed by its catalog ID.
// The JSON field names follow the ordering API schema.
type Ingredient struct {
	IngredientID int     `json:"ingredientId"`
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
}

// NutritionalInfo is the per-serving nutrition of a created blend.
type NutritionalInfo struct {
	Calories      int     `json:"calories"`
	Protein       float64 `json:"protein"`
	Carbohydrates float64 `json:"carbohydrates"`
	Fats          float64 `json:"fats"`
	Fiber         float64 `json:"fiber"`
	Energy        float64 `json:"energy"`
}

// Result is the outcome of a creation attempt. Failures carry their reasons
// in Errors; Success stays false.
type Result struct {
	Success             bool             `json:"success"`
	Errors              []string         `json:"errors"`
	BlendURL            string           `json:"blend_url"`
	ProductImageURL     string           `json:"product_image_url"`
	NutritionalLabelURL string           `json:"nutritional_label_url"`
	BlendName           string           `json:"blend_name"`
	Price               float64          `json:"price"`
	Servings            int              `json:"servings"`
	BaseMix             string           `json:"base_mix"`
	NutritionalInfo     NutritionalInfo  `json:"nutritional_info"`
	Ingredients         []map[string]any `json:"ingredients"`
	AddMixes            []map[string]any `json:"add_mixes"`
}

// CreatorOption configures the creator.
type CreatorOption func(*Creator)

// WithAPIURL points the creator at a different ordering API endpoint.
func WithAPIURL(url string) CreatorOption {
	return func(c *Creator) {
		if url != "" {
			c.apiURL = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) CreatorOption {
	return func(c *Creator) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the creator logger.
func WithLogger(logger *slog.Logger) CreatorOption {
	return func(c *Creator) {
		c.logger = logger
	}
}

// Creator posts formulations to the production ordering API.
type Creator struct {
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewCreator builds a blend creator.
func NewCreator(opts ...CreatorOption) *Creator {
	c := &Creator{
		apiURL:     defaultAPIURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create posts the blend to the ordering API. Validation and transport
// failures come back as a failed Result rather than an error, so the model
// always receives something it can relay to the user.
func (c *Creator) Create(ctx context.Context, req Request) *Result {
	result, err := c.create(ctx, req)
	if err != nil {
		c.logger.Error("blend creation failed",
			slog.String("blend_name", req.BlendName),
			slog.Any("error", err))
		return &Result{
			Success:   false,
			Errors:    []string{err.Error()},
			BlendName: req.BlendName,
		}
	}

	c.logger.Info("blend created",
		slog.String("blend_name", result.BlendName),
		slog.String("blend_url", result.BlendURL))
	return result
}

func (c *Creator) create(ctx context.Context, req Request) (*Result, error) {
	mix, err := catalog.BaseMixByID(req.BaseMixID)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	body, err := json.Marshal(buildAPIRequest(req, mix))
	if err != nil {
		return nil, fmt.Errorf("marshal blend request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build blend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blend response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse blend response: %w", err)
	}
	return formatResult(&apiResp), nil
}

// apiRequest is the ordering API's creation schema.
type apiRequest struct {
	EventID          string           `json:"event_id"`
	Key              string           `json:"key"`
	TemplateID       string           `json:"template_id"`
	Profile          apiProfile       `json:"profile"`
	BlendInformation apiBlendInfo     `json:"blendInformation"`
	BaseMix          apiBaseMix       `json:"baseMix"`
	AddMixes         []map[string]any `json:"addMixes"`
	Ingredients      []Ingredient     `json:"ingredients"`
}

type apiProfile struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Gender    string `json:"gender"`
	Age       string `json:"age"`
}

type apiBlendInfo struct {
	BlendDescription        string  `json:"blendDescription"`
	FormulationNotes        string  `json:"formulationNotes"`
	BlendName               string  `json:"blendName"`
	BlendType               string  `json:"blendType"`
	BlendCategory           string  `json:"blendCategory"`
	BlendSubCategory        string  `json:"blendSubCategory"`
	MaxPrice                float64 `json:"maxPrice"`
	NumberOfServings        int     `json:"numberOfServings"`
	BlendFirstName          bool    `json:"blendFirstName"`
	BlendLastName           bool    `json:"blendLastName"`
	BlendNameSuffix         string  `json:"blendNameSuffix"`
	SendCommunication       bool    `json:"sendCommunication"`
	SenderAccount           string  `json:"senderAccount"`
	Referrer                string  `json:"referrer"`
	ReferrerExternalNumber  string  `json:"referrerExternalNumber"`
	ReferrerExternalType    string  `json:"referrerExternalType"`
	AIReportViewForward     bool    `json:"aiReportViewForward"`
	AIReportSendImmediately bool    `json:"aiReportSendImmediately"`
	OpenAIFlag              bool    `json:"openAIFlag"`
	CreatedAt               string  `json:"createdAt"`
}

type apiBaseMix struct {
	BaseMixID     int    `json:"baseMixId"`
	BaseMixType   string `json:"baseMixType"`
	BaseMixTypeID int    `json:"baseMixTypeId"`
	BaseMixName   string `json:"baseMixName"`
}

// apiResponse is the subset of the ordering API's response the consultant
// relays to the user.
type apiResponse struct {
	Success                bool             `json:"success"`
	Errors                 []string         `json:"errors"`
	URLForBlend            string           `json:"URLForBlend"`
	ProductImagePath       string           `json:"ProductImagePath"`
	NutritionalLabel       string           `json:"NutritionalLabel"`
	Ingredients            []map[string]any `json:"ingredients"`
	AddMixes               []map[string]any `json:"addMixes"`
	BlendInformation       apiRespBlendInfo `json:"blendInformation"`
	NutritionalInformation NutritionalInfo  `json:"nutritionalInformation"`
}

type apiRespBlendInfo struct {
	BlendName        string  `json:"BlendName"`
	Price            float64 `json:"Price"`
	NumberOfServings int     `json:"NumberOfServings"`
	BaseMix          string  `json:"BaseMix"`
}

func buildAPIRequest(req Request, mix catalog.BaseMix) *apiRequest {
	eventID := uuid.New().String()

	maxPrice := req.MaxPrice
	if maxPrice <= 0 {
		maxPrice = defaultMaxPrice
	}
	servings := req.NumberOfServings
	if servings <= 0 {
		servings = defaultServings
	}
	ingredients := req.Ingredients
	if ingredients == nil {
		ingredients = []Ingredient{}
	}

	return &apiRequest{
		EventID:    eventID,
		Key:        uuid.New().String(),
		TemplateID: templateID,
		Profile: apiProfile{
			ID:        testProfileID,
			FirstName: req.UserFirstName,
			LastName:  req.UserLastName,
			// The real address stays out of the ordering system; product
			// communication goes to the consultant inbox.
			Email:  testProfileEmail,
			Gender: req.UserGender,
			Age:    strconv.Itoa(req.UserAge),
		},
		BlendInformation: apiBlendInfo{
			BlendDescription:       req.BlendDescription,
			FormulationNotes:       req.FormulationNotes,
			BlendName:              req.BlendName,
			BlendType:              "AI Generated",
			BlendCategory:          "Personalized",
			BlendSubCategory:       "AI Consultation",
			MaxPrice:               maxPrice,
			NumberOfServings:       servings,
			BlendFirstName:         true,
			BlendLastName:          true,
			BlendNameSuffix:        "AI Blend",
			SendCommunication:      true,
			SenderAccount:          defaultSenderAccount,
			Referrer:               defaultReferrer,
			ReferrerExternalNumber: eventID,
			ReferrerExternalType:   "AI_SESSION",
			AIReportViewForward:    true,
			OpenAIFlag:             true,
			CreatedAt:              time.Now().UTC().Format(time.RFC3339),
		},
		BaseMix: apiBaseMix{
			BaseMixID:     mix.ID,
			BaseMixType:   mix.Name,
			BaseMixTypeID: mix.TypeID,
			BaseMixName:   mix.Name,
		},
		// The ordering API resolves add-mix metadata from IDs on its side;
		// the catalog here only carries base mixes.
		AddMixes:    []map[string]any{},
		Ingredients: ingredients,
	}
}

func formatResult(resp *apiResponse) *Result {
	errs := resp.Errors
	if errs == nil {
		errs = []string{}
	}
	ingredients := resp.Ingredients
	if ingredients == nil {
		ingredients = []map[string]any{}
	}
	addMixes := resp.AddMixes
	if addMixes == nil {
		addMixes = []map[string]any{}
	}

	return &Result{
		Success:             resp.Success,
		Errors:              errs,
		BlendURL:            resp.URLForBlend,
		ProductImageURL:     resp.ProductImagePath,
		NutritionalLabelURL: resp.NutritionalLabel,
		BlendName:           resp.BlendInformation.BlendName,
		Price:               resp.BlendInformation.Price,
		Servings:            resp.BlendInformation.NumberOfServings,
		BaseMix:             resp.BlendInformation.BaseMix,
		NutritionalInfo:     resp.NutritionalInformation,
		Ingredients:         ingredients,
		AddMixes:            addMixes,
	}
}
