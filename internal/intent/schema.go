package intent

// Skeleton is the canonical intent document shape, printed by `relgate
// schema` as an authoring starting point. Kept as literal YAML so comments
// survive; Load accepts exactly this layout.
const Skeleton = `# Intent document for the release gate pipeline.
id: support-triage            # stable intent identifier
version: "1.0.0"              # candidate version under evaluation
purpose: Route inbound tickets to the right queue.
owner:
  name: Jane Doe
  email: jane@example.com
  team: support-platform
gate:
  min_pass_rate: 0.8          # overall pass-rate floor in [0,1]
  category_min:               # optional per-category floors
    billing: 0.9
canary:
  sample_size: 5              # cohort size for canary prepare
  max_error_rate: 0.2         # canary breach thresholds
  max_latency_p95_ms: 400
scenarios:
  - id: S1
    category: billing
    input:
      text: "I was double charged this month"
    expect:
      equals:
        queue: billing        # structured field must equal this value
      contains:
        - refund              # raw output must contain this substring
  - id: S2
    input:
      text: "password reset link broken"
    expect:
      fields:
        - queue               # structured field must merely be present
`
