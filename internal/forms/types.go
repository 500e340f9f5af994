package forms

import (
	forms "google.golang.org/api/forms/v1"
)

// Form is the structural view of a form exposed to tools.
type Form struct {
	FormID       string `json:"formId"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ResponderURI string `json:"responderUri,omitempty"`
	ItemCount    int    `json:"itemCount"`
}

// FormSummary is the listing view sourced from Drive metadata.
type FormSummary struct {
	FormID       string `json:"formId"`
	Title        string `json:"title"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	WebViewLink  string `json:"webViewLink,omitempty"`
}

// Response is one submitted form response.
type Response struct {
	ResponseID        string            `json:"responseId"`
	RespondentEmail   string            `json:"respondentEmail,omitempty"`
	CreateTime        string            `json:"createTime,omitempty"`
	LastSubmittedTime string            `json:"lastSubmittedTime,omitempty"`
	Answers           map[string]string `json:"answers,omitempty"`
}

// toForm converts a Forms API form to our Form type.
func toForm(f *forms.Form) Form {
	if f == nil {
		return Form{}
	}

	result := Form{
		FormID:       f.FormId,
		ResponderURI: f.ResponderUri,
		ItemCount:    len(f.Items),
	}
	if f.Info != nil {
		result.Title = f.Info.Title
		result.Description = f.Info.Description
	}
	return result
}

// toResponse converts a Forms API response, flattening answers to their
// first text value.
func toResponse(r *forms.FormResponse) Response {
	if r == nil {
		return Response{}
	}

	result := Response{
		ResponseID:        r.ResponseId,
		RespondentEmail:   r.RespondentEmail,
		CreateTime:        r.CreateTime,
		LastSubmittedTime: r.LastSubmittedTime,
	}
	if len(r.Answers) > 0 {
		result.Answers = make(map[string]string, len(r.Answers))
		for questionID, a := range r.Answers {
			if a.TextAnswers != nil && len(a.TextAnswers.Answers) > 0 {
				result.Answers[questionID] = a.TextAnswers.Answers[0].Value
			}
		}
	}
	return result
}
