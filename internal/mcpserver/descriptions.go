package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeDetect() string {
	return `Finds near-duplicate code blocks inside each Python file. Blocks are compared after
identifiers become VAR, numbers NUM and strings STR, using Jaccard similarity over token
trigrams.

USE WHEN:
- Looking for copy-pasted logic before refactoring a module
- Checking whether a change introduced duplicated code
- Deciding which functions refactor_duplicates would merge

INTERPRETING RESULTS:
- similarity 1.0: identical after renaming variables and changing literals
- similarity >= threshold (default 0.76): reported as a duplicate pair
- block1 always precedes block2 in the file; line_number and end_line are 1-based
- exact_duplicates lists functions redefined with the same body under the same name
- dropped lists blocks that could not be tokenized and were left out

METRICS RETURNED:
- Per file: pairs, exact_duplicates, dropped blocks
- Per file summary: total_blocks, total_pairs, duplicated_lines, duplication_ratio,
  avg/p50/p95 similarity
- Project summary: files_with_clones, total_pairs, duplication_ratio`
}

func describeRefactor() string {
	return `Rewrites one Python file so duplicated module-level functions share an extracted
helper named _common_logic_<hash>. The file on disk is never modified; the rewritten source
is returned.

USE WHEN:
- Removing duplicated functions found by detect_duplicates
- Previewing the edits a refactoring would make

INTERPRETING RESULTS:
- mode "wrapper" (default): every duplicate keeps its name and signature and forwards to
  the helper
- mode "collapse": the first function of a group stays, the others are deleted and their
  call sites renamed
- blocks=true also extracts duplicated statement blocks into _extracted_block_<hash>
  helpers
- changed=false with message "no duplicates" means nothing qualified
- skipped lists functions or pairs that were left alone and why
- a syntax error in the input returns an error and no rewrite

METRICS RETURNED:
- source: the rewritten file
- groups: helper name, members and similarity of each merged group
- helpers and edits: the inserted helpers and every replaced span`
}

func describeSmells() string {
	return `Reports long methods and long parameter lists in Python files, together with
duplicate blocks, as one combined report.

USE WHEN:
- Reviewing a module for maintainability problems
- Choosing refactoring targets beyond duplication

INTERPRETING RESULTS:
- long_method: the def statement through the last body line spans more than
  long_method_lines (default 15) lines
- long_parameter_list: more than long_parameter_count (default 3) parameters; self, cls,
  *args and **kwargs count
- severity "high" when the measure is at least twice the limit

METRICS RETURNED:
- Per file: pairs, exact_duplicates, smells with function, start_line, value, threshold
- Summary: duplicate_pairs, duplication_ratio, long_methods, long_parameter_lists`
}
