package conduit

import "encoding/json"

// Every Conduit response carries the same envelope; result is decoded
// per method.
type envelope struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode string          `json:"error_code"`
	ErrorInfo string          `json:"error_info"`
}

type cursor struct {
	After  string `json:"after"`
	Before string `json:"before"`
	Limit  int    `json:"limit"`
}

// maniphest.search
// https://secure.phabricator.com/conduit/method/maniphest.search/

type taskSearchParams struct {
	Constraints taskConstraints `json:"constraints"`
	Attachments attachmentSpec  `json:"attachments"`
	Order       string          `json:"order"`
	After       string          `json:"after,omitempty"`
}

type taskConstraints struct {
	Query    string   `json:"query,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
	Projects []string `json:"projects,omitempty"`
}

type attachmentSpec struct {
	Projects bool `json:"projects"`
}

type taskSearchResult struct {
	Data   []taskData `json:"data"`
	Cursor cursor     `json:"cursor"`
}

type taskData struct {
	ID     int    `json:"id"`
	PHID   string `json:"phid"`
	Fields struct {
		Name        string `json:"name"`
		Description struct {
			Raw string `json:"raw"`
		} `json:"description"`
		Status struct {
			Value string `json:"value"`
		} `json:"status"`
	} `json:"fields"`
	Attachments struct {
		Projects struct {
			ProjectPHIDs []string `json:"projectPHIDs"`
		} `json:"projects"`
	} `json:"attachments"`
}

// maniphest.edit
// https://secure.phabricator.com/conduit/method/maniphest.edit/

type editParams struct {
	Transactions     []transaction `json:"transactions"`
	ObjectIdentifier string        `json:"objectIdentifier,omitempty"`
}

type transaction struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type editResult struct {
	Object struct {
		ID   int    `json:"id"`
		PHID string `json:"phid"`
	} `json:"object"`
	Transactions []struct {
		PHID string `json:"phid"`
	} `json:"transactions"`
}

// project.search
// https://secure.phabricator.com/conduit/method/project.search/

type projectSearchParams struct {
	Constraints projectConstraints `json:"constraints"`
}

type projectConstraints struct {
	Name string `json:"name"`
}

type projectSearchResult struct {
	Data   []projectData `json:"data"`
	Cursor cursor        `json:"cursor"`
}

type projectData struct {
	ID     int    `json:"id"`
	PHID   string `json:"phid"`
	Fields struct {
		Name string `json:"name"`
	} `json:"fields"`
}
