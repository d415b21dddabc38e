package descriptions

// Tool descriptions shown to MCP clients

const (
	AssaySubmitDescription = `Process one lab-instrument PDF report into the assay workbooks.

**When to use:** A new report PDF has arrived and its results should be appended to the per-assay spreadsheets.

**What happens:** The PDF is parsed into lines, the known assays are detected, each assay's block is cut out and its fields are extracted with the assay's rule file, then one row per assay is appended to <output>/<assay>.xlsx on the sheet of its lot.

**Result statuses:**
• DONE: all assays written; "writes" lists workbook, sheet and created/appended/skipped per assay
• SKIPPED: "already_done" (same file content was processed before) or "locked" (another run is processing it)
• FAILED: "error" carries the reason, "error_kind" its category (INPUT, PARSE, CONFIG, SPLIT, EXTRACT, WRITE, LOCK)

**Notes:** Identical file content always maps to the same job_id, so resubmitting a renamed copy is a no-op. Rows are deduplicated by test|date|time within a sheet.`

	AssayBatchDescription = `Process every PDF in a directory, one after another.

**When to use:** A folder of reports needs to be ingested in one go.

**Behavior:** Files are submitted strictly in path order. Already processed files are skipped, so re-running a batch over the same folder only processes new reports. The summary counts done, failed and skipped files and lists every job result.`

	AssayJobStateDescription = `Show the persisted state of a job, or of all jobs.

**When to use:** Inspect why a job failed or which stage it reached.

**Output:** The job's status (LOCKED, PARSED, NORMALIZED, ASSAYS_DETECTED, SPLIT, DONE, FAILED), its step log with per-stage details, and the error if it failed. Without job_id a one-line summary per job is listed.`

	AssayListDumpsDescription = `List the debug text dumps a job left behind.

**When to use:** Before testing a regex, find the exact text the extractor saw.

**Output:** <job_id>_normalized.txt (the whole normalized document) and <job_id>_<assay>_block.txt (one per assay) file names from the jobs directory.`

	AssayRegexTestDescription = `Test a regular expression against a job's normalized text or assay block dump.

**When to use:** Writing or fixing a rule file pattern (lot_rule or extract_rules field).

**Flags:** NONE, MULTILINE (^ and $ match at line breaks), DOTALL (. matches newlines) or MULTILINE|DOTALL.

**Output:** The first match, every capture group, and six lines of context around the hit with the matching line marked ">> ". Patterns use RE2 syntax, the same engine the extractor uses.`
)
