package governance

import (
	"context"
	"testing"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	req1 := Request{Tool: "browser_observe"}
	res1, err := engine.Evaluate(ctx, req1)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res1.Effect)
	}

	// Test Deny
	engine.DenyTool("browser_act")
	req2 := Request{Tool: "browser_act"}
	res2, err := engine.Evaluate(ctx, req2)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res2.Effect)
	}
}

func TestDefaultPolicyEngine_DenyArguments(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	if err := engine.DenyArguments(`(?i)file://`); err != nil {
		t.Fatalf("DenyArguments failed: %v", err)
	}

	res, err := engine.Evaluate(context.Background(), Request{
		Tool:      "browser_navigate",
		Arguments: "file:///etc/passwd",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res.Effect)
	}
}

func TestDefaultPolicyEngine_DenyHost(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	engine.DenyHost("169.254.169.254")

	res, err := engine.Evaluate(context.Background(), Request{
		Tool:      "browser_navigate",
		Arguments: "http://169.254.169.254/latest/meta-data/",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res.Effect)
	}

	// Other hosts pass through.
	res, err = engine.Evaluate(context.Background(), Request{
		Tool:      "browser_navigate",
		Arguments: "https://example.com/",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s: %s", res.Effect, res.Reason)
	}
}
