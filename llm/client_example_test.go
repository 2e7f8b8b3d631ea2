package llm

import (
	"context"
	"fmt"
)

type fakeClient struct{}

func (f *fakeClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	return &Response{Content: "ok", Model: ModelGemini25Flash, Provider: ProviderGemini,
		Usage: &Usage{InputTokens: 3, OutputTokens: 1, TotalTokens: 4}}, nil
}
func (f *fakeClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	return f.Chat(ctx, &ChatRequest{Messages: TextMessages(prompt)})
}
func (f *fakeClient) Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error {
	defer close(output)
	output <- &Response{Content: "ok", Model: ModelGemini25Flash, Provider: ProviderGemini}
	return nil
}
func (f *fakeClient) Model() string      { return ModelGemini25Flash }
func (f *fakeClient) Provider() Provider { return ProviderGemini }
func (f *fakeClient) Validate() error    { return nil }

func ExampleInstrumentedClient() {
	c := NewInstrumentedClient(&fakeClient{})
	r, _ := c.Chat(context.Background(), &ChatRequest{Messages: TextMessages("hi")})
	fmt.Println(r.Content)
	// Output:
	// ok
}
