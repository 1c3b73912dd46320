// Package shopify provides a client for the Shopify Admin GraphQL API.
// It covers the id lookups, the tag and metafield restore mutations, and the
// tag count queries used by the restore service.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2025-01"

// countConcurrency bounds the number of in-flight count queries per call.
const countConcurrency = 4

var legacyIDPattern = regexp.MustCompile(`^\d+$`)

// Client wraps the Admin GraphQL endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// AdminEndpoint builds the GraphQL endpoint URL for a shop domain.
func AdminEndpoint(shopDomain, apiVersion string) string {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	shop := strings.TrimSuffix(shopDomain, "/")
	if !strings.HasPrefix(shop, "http://") && !strings.HasPrefix(shop, "https://") {
		shop = "https://" + shop
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", shop, apiVersion)
}

// NewClient creates a client for the given GraphQL endpoint.
func NewClient(endpoint, accessToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		token:      accessToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do posts a GraphQL document and decodes the data member into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &TransportError{Op: op, Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var gr graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
		}
		return &TransportError{Op: op, Status: resp.StatusCode, Message: strings.Join(msgs, "; ")}
	}

	if out != nil && len(gr.Data) > 0 {
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	return nil
}

// --- Lookups ---

// taggableTypes maps object type names to the resources accepted by tagsAdd.
var taggableTypes = map[string]string{
	"product":     "Product",
	"order":       "Order",
	"customer":    "Customer",
	"draftorder":  "DraftOrder",
	"article":     "Article",
	"blogarticle": "Article",
}

// metafieldOwnerTypes maps owner type names (MetafieldOwnerType enum values
// and object type names) to resource names.
var metafieldOwnerTypes = map[string]string{
	"product":         "Product",
	"productvariant":  "ProductVariant",
	"collection":      "Collection",
	"customer":        "Customer",
	"order":           "Order",
	"draftorder":      "DraftOrder",
	"company":         "Company",
	"companylocation": "CompanyLocation",
	"location":        "Location",
	"page":            "Page",
	"blog":            "Blog",
	"article":         "Article",
	"market":          "Market",
	"shop":            "Shop",
}

// normalizeType folds "DRAFT_ORDER", "DraftOrder", and "draft orders" to "draftorder".
func normalizeType(t string) string {
	t = strings.ToLower(t)
	t = strings.NewReplacer("_", "", " ", "", "-", "").Replace(t)
	if strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss") {
		if _, ok := metafieldOwnerTypes[strings.TrimSuffix(t, "s")]; ok {
			t = strings.TrimSuffix(t, "s")
		}
	}
	return t
}

const nodeQuery = `query node($id: ID!) { node(id: $id) { id } }`

// confirmNode returns the id when the node exists, "" otherwise.
func (c *Client) confirmNode(ctx context.Context, op, id string) (string, error) {
	var data struct {
		Node *struct {
			ID string `json:"id"`
		} `json:"node"`
	}
	if err := c.do(ctx, op, nodeQuery, map[string]any{"id": id}, &data); err != nil {
		return "", err
	}
	if data.Node == nil {
		return "", nil
	}
	return data.Node.ID, nil
}

// LookupTagObject resolves a legacy numeric id, or an order name such as
// "#1001", of a taggable object.
func (c *Client) LookupTagObject(ctx context.Context, objectType, rawReference string) (string, error) {
	resource, ok := taggableTypes[normalizeType(objectType)]
	if !ok {
		return "", nil
	}
	ref := strings.TrimSpace(rawReference)

	if legacyIDPattern.MatchString(ref) {
		return c.confirmNode(ctx, "lookup tag object", models.CanonicalPrefix+resource+"/"+ref)
	}

	if resource == "Order" && strings.HasPrefix(ref, "#") {
		const q = `query orderByName($q: String!) { orders(first: 1, query: $q) { nodes { id } } }`
		var data struct {
			Orders struct {
				Nodes []struct {
					ID string `json:"id"`
				} `json:"nodes"`
			} `json:"orders"`
		}
		if err := c.do(ctx, "lookup order by name", q, map[string]any{"q": "name:" + ref}, &data); err != nil {
			return "", err
		}
		if len(data.Orders.Nodes) == 0 {
			return "", nil
		}
		return data.Orders.Nodes[0].ID, nil
	}

	return "", nil
}

// LookupMetafieldOwner resolves a reference keyed by owner type. The shop
// owner has a single instance and ignores the reference.
func (c *Client) LookupMetafieldOwner(ctx context.Context, ownerType, rawReference string) (string, error) {
	resource, ok := metafieldOwnerTypes[normalizeType(ownerType)]
	if !ok {
		return "", nil
	}

	if resource == "Shop" {
		var data struct {
			Shop struct {
				ID string `json:"id"`
			} `json:"shop"`
		}
		if err := c.do(ctx, "lookup shop", `query { shop { id } }`, nil, &data); err != nil {
			return "", err
		}
		return data.Shop.ID, nil
	}

	ref := strings.TrimSpace(rawReference)
	if !legacyIDPattern.MatchString(ref) {
		return "", nil
	}
	return c.confirmNode(ctx, "lookup metafield owner", models.CanonicalPrefix+resource+"/"+ref)
}

// --- Mutations ---

const tagsAddMutation = `
mutation tagOp($id: ID!, $tags: [String!]!) {
  tagsAdd(id: $id, tags: $tags) {
    userErrors { field message }
  }
}`

// TagsAdd re-applies tags to the object with the given canonical id.
func (c *Client) TagsAdd(ctx context.Context, id string, tags []string) ([]models.UserError, error) {
	var data struct {
		TagsAdd struct {
			UserErrors []models.UserError `json:"userErrors"`
		} `json:"tagsAdd"`
	}
	if err := c.do(ctx, "tagsAdd", tagsAddMutation, map[string]any{"id": id, "tags": tags}, &data); err != nil {
		return nil, err
	}
	return data.TagsAdd.UserErrors, nil
}

const metafieldsSetMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id namespace key value type }
    userErrors { field message code }
  }
}`

// MetafieldsSet writes a single metafield back to its owner.
func (c *Client) MetafieldsSet(ctx context.Context, input MetafieldInput) ([]models.UserError, error) {
	var data struct {
		MetafieldsSet struct {
			UserErrors []models.UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	vars := map[string]any{"metafields": []MetafieldInput{input}}
	if err := c.do(ctx, "metafieldsSet", metafieldsSetMutation, vars, &data); err != nil {
		return nil, err
	}
	c.logger.Debug("metafield restored", "owner_id", input.OwnerID, "namespace", input.Namespace, "key", input.Key,
		"user_errors", len(data.MetafieldsSet.UserErrors))
	return data.MetafieldsSet.UserErrors, nil
}

// --- Counts ---

// countFields maps count resources to their query root field. A nil entry
// is a known resource without a tag count.
var countFields = map[string]*string{
	"products":         ptr("productsCount"),
	"productVariants":  ptr("productVariantsCount"),
	"collections":      ptr("collectionsCount"),
	"customers":        ptr("customersCount"),
	"orders":           ptr("ordersCount"),
	"draftOrder":       ptr("draftOrdersCount"),
	"companies":        ptr("companiesCount"),
	"companyLocations": ptr("companyLocationsCount"),
	"locations":        ptr("locationsCount"),
	"pages":            ptr("pagesCount"),
	"blog":             ptr("blogsCount"),
	"articles":         ptr("articlesCount"),
	"markets":          ptr("marketsCount"),
	"shop":             nil,
}

func ptr(s string) *string { return &s }

// CountField returns the count root field for a resource, or "" when the
// resource has none.
func CountField(resource string) string {
	f := countFields[resource]
	if f == nil {
		return ""
	}
	return *f
}

// CountByTags sums one filtered count query per tag. A failing tag query is
// logged and contributes 0; unknown resources return 0 without a call.
func (c *Client) CountByTags(ctx context.Context, resource string, tags []string) (int, error) {
	field := CountField(resource)
	if field == "" {
		return 0, nil
	}
	query := fmt.Sprintf(`query tagCount($q: String) { %s(query: $q) { count } }`, field)

	counts := make([]int, len(tags))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(countConcurrency)
	for i, tag := range tags {
		g.Go(func() error {
			var data map[string]struct {
				Count int `json:"count"`
			}
			if err := c.do(gctx, "count "+field, query, map[string]any{"q": "tag:" + tag}, &data); err != nil {
				c.logger.Error("count query failed", "resource", resource, "tag", tag, "error", err)
				return nil
			}
			counts[i] = data[field].Count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}
