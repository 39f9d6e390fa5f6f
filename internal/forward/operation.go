package forward

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldMapping maps a logical parameter onto the XML element carrying it.
// Mappings are ordered; some upstream message parsers are positional.
type FieldMapping struct {
	Param   string
	Element string
}

// Operation is a static descriptor of one forwardable upstream operation.
// The table is built once at startup and never mutated.
type Operation struct {
	Name     string
	Required []string
	Optional []string

	// XML variant: message request element name and its field layout
	XMLRequest string
	XMLFields  []FieldMapping

	// REST variant: target call shape; path segments of the form {param} are
	// substituted, listed params are forwarded as query values or body fields
	RESTMethod string
	RESTPath   string
	RESTQuery  []string
	RESTBody   []string

	// Result optionally normalizes the decoded upstream payload into the
	// shape the gateway promises its own callers
	Result func(raw map[string]interface{}) map[string]interface{}
}

// Reserved operation names handled by the forwarder itself rather than the table
const (
	opLogin  = "login"
	opLogout = "logout"
)

func operations() map[string]*Operation {
	ops := []*Operation{
		{
			Name:       "getInventory",
			Required:   []string{"partNumber"},
			XMLRequest: "InvQtyRq",
			XMLFields:  []FieldMapping{{"partNumber", "PartNum"}},
			RESTMethod: "GET",
			RESTPath:   "/api/parts/{partNumber}/inventory",
			Result:     mapInventory,
		},
		{
			Name:       "addInventory",
			Required:   []string{"partNumber", "quantity"},
			Optional:   []string{"locationId", "note"},
			XMLRequest: "AddInventoryRq",
			XMLFields: []FieldMapping{
				{"partNumber", "PartNum"},
				{"quantity", "Quantity"},
				{"locationId", "LocationTagNum"},
				{"note", "Note"},
			},
			RESTMethod: "POST",
			RESTPath:   "/api/parts/{partNumber}/inventory/add",
			RESTBody:   []string{"quantity", "locationId", "note"},
		},
		{
			Name:       "listParts",
			Optional:   []string{"pageNumber", "pageSize"},
			XMLRequest: "LightPartListRq",
			RESTMethod: "GET",
			RESTPath:   "/api/parts",
			RESTQuery:  []string{"pageNumber", "pageSize"},
		},
		{
			Name:       "createPart",
			Required:   []string{"partNumber"},
			Optional:   []string{"description", "uom"},
			XMLRequest: "PartAddRq",
			XMLFields: []FieldMapping{
				{"partNumber", "PartNum"},
				{"description", "Description"},
				{"uom", "UOM"},
			},
			RESTMethod: "POST",
			RESTPath:   "/api/parts",
			RESTBody:   []string{"partNumber", "description", "uom"},
		},
		{
			Name:       "listProducts",
			Optional:   []string{"pageNumber", "pageSize"},
			XMLRequest: "ProductListRq",
			RESTMethod: "GET",
			RESTPath:   "/api/products",
			RESTQuery:  []string{"pageNumber", "pageSize"},
		},
		{
			Name:       "listPurchaseOrders",
			Optional:   []string{"status", "pageNumber", "pageSize"},
			XMLRequest: "POListRq",
			XMLFields:  []FieldMapping{{"status", "Status"}},
			RESTMethod: "GET",
			RESTPath:   "/api/purchase-orders",
			RESTQuery:  []string{"status", "pageNumber", "pageSize"},
		},
		{
			Name:       "listManufactureOrders",
			Optional:   []string{"status", "pageNumber", "pageSize"},
			XMLRequest: "MOListRq",
			XMLFields:  []FieldMapping{{"status", "Status"}},
			RESTMethod: "GET",
			RESTPath:   "/api/manufacture-orders",
			RESTQuery:  []string{"status", "pageNumber", "pageSize"},
		},
		{
			Name:       "listMemos",
			Optional:   []string{"type", "pageNumber", "pageSize"},
			XMLRequest: "MemoListRq",
			XMLFields:  []FieldMapping{{"type", "AssociationType"}},
			RESTMethod: "GET",
			RESTPath:   "/api/memos",
			RESTQuery:  []string{"type", "pageNumber", "pageSize"},
		},
		{
			Name:       "getMemo",
			Required:   []string{"memoId"},
			XMLRequest: "MemoGetRq",
			XMLFields:  []FieldMapping{{"memoId", "MemoID"}},
			RESTMethod: "GET",
			RESTPath:   "/api/memos/{memoId}",
		},
		{
			Name:       "createMemo",
			Required:   []string{"memo"},
			Optional:   []string{"userName"},
			XMLRequest: "MemoAddRq",
			XMLFields: []FieldMapping{
				{"memo", "Memo"},
				{"userName", "UserName"},
			},
			RESTMethod: "POST",
			RESTPath:   "/api/memos",
			RESTBody:   []string{"memo", "userName"},
		},
		{
			Name:       "deleteMemo",
			Required:   []string{"memoId"},
			XMLRequest: "MemoRemoveRq",
			XMLFields:  []FieldMapping{{"memoId", "MemoID"}},
			RESTMethod: "DELETE",
			RESTPath:   "/api/memos/{memoId}",
		},
		{
			Name:       "listVendors",
			Optional:   []string{"pageNumber", "pageSize"},
			XMLRequest: "VendorListRq",
			RESTMethod: "GET",
			RESTPath:   "/api/vendors",
			RESTQuery:  []string{"pageNumber", "pageSize"},
		},
		{
			Name:       "listUsers",
			XMLRequest: "UserListRq",
			RESTMethod: "GET",
			RESTPath:   "/api/users",
		},
		{
			Name:       "listUOMs",
			XMLRequest: "UOMListRq",
			RESTMethod: "GET",
			RESTPath:   "/api/uoms",
		},
	}

	table := make(map[string]*Operation, len(ops))
	for _, op := range ops {
		table[op.Name] = op
	}
	return table
}

// missingParams returns the required parameters that are absent or blank
func (op *Operation) missingParams(params map[string]interface{}) []string {
	var missing []string
	for _, name := range op.Required {
		val, ok := params[name]
		if !ok || val == nil || paramString(val) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// paramString renders a parameter value the way it is put on the wire
func paramString(value interface{}) string {
	switch val := value.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func mapInventory(raw map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"partNumber": firstString(raw, "partNumber", "PartNum"),
		"quantity":   firstNumber(raw, "quantity", "qtyOnHand", "QtyOnHand", "totalQty", "TotalQty"),
	}
}

func firstString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if val, ok := raw[key]; ok {
			if str := strings.TrimSpace(paramString(val)); str != "" {
				return str
			}
		}
	}
	return ""
}

func firstNumber(raw map[string]interface{}, keys ...string) float64 {
	for _, key := range keys {
		val, ok := raw[key]
		if !ok {
			continue
		}
		switch num := val.(type) {
		case float64:
			return num
		case int:
			return float64(num)
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(num), 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}
