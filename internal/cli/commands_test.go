package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlog/internal/core"
	"spendlog/internal/services"
)

const header = "Date,Category,Amount,Note\n"

type result struct {
	code   int
	stdout string
	stderr string
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "HOST", "PORT", "DATA_BACKEND", "EXPENSES_FILE", "SQLITE_DB_PATH", "CURRENCY_SYMBOL", "LOG_LEVEL", "REPORT_CACHE_TTL"} {
		t.Setenv(key, "")
	}
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(strings.NewReader(stdin), &out, &errOut)
	code := app.Execute(context.Background(), args)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// csvRun runs a command against the CSV backend at path.
func csvRun(t *testing.T, path, stdin string, args ...string) result {
	t.Helper()
	return run(t, stdin, append([]string{"--backend", "csv", "--file", path}, args...)...)
}

func seedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expenses.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleCSV = header +
	"2024-01-01,Food,10,\n" +
	"2024-01-02,Food,5,\n" +
	"2024-01-03,Fuel,20,\n"

func TestRootCommand(t *testing.T) {
	root := NewApp(nil, nil, nil).RootCommand()
	assert.Equal(t, "spendlog-cli", root.Use)

	for _, action := range services.Actions() {
		cmd, _, err := root.Find([]string{action.String()})
		require.NoError(t, err, action)
		assert.Equal(t, action.String(), cmd.Annotations[actionAnnotation])
	}
	for _, flag := range []string{"config", "file", "backend", "db", "yes"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestAddAndList(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "expenses.csv")

	for _, args := range [][]string{
		{"add", "2024-01-01", "Food", "10"},
		{"add", "2024-01-02", "Food", "5"},
		{"add", "2024-01-03", "Fuel", "20"},
	} {
		res := csvRun(t, path, "", args...)
		require.Equal(t, 0, res.code, res.stderr)
		assert.Equal(t, core.MsgAdded+"\n", res.stdout)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(data))

	res := csvRun(t, path, "", "list")
	require.Equal(t, 0, res.code, res.stderr)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], "2024-01-01")
	assert.Contains(t, lines[3], "Fuel")
	assert.Equal(t, "Total Expense: ₹35.00", lines[4])

	// action name works as an alias
	res = csvRun(t, path, "", "load")
	assert.Equal(t, 0, res.code)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	clearEnv(t)
	path := seedFile(t, header)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing amount", []string{"add", "2024-01-01", "Food"}, "Please fill in all fields except note."},
		{"blank category", []string{"add", "2024-01-01", " ", "10"}, "Please fill in all fields except note."},
		{"non-numeric amount", []string{"add", "2024-01-01", "Food", "ten"}, "Amount must be a number."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := csvRun(t, path, "", tt.args...)
			assert.Equal(t, 1, res.code)
			assert.Contains(t, res.stderr, tt.want)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, header, string(data), "storage must be unchanged")
		})
	}
}

func TestListEmptyAndMalformed(t *testing.T) {
	clearEnv(t)

	res := csvRun(t, seedFile(t, header), "", "list")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "No expenses recorded yet.")
	assert.Contains(t, res.stdout, "Total Expense: ₹0.00")

	res = csvRun(t, seedFile(t, header+"2024-01-01,Food,ten,\n"), "", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `Cannot load expenses: line 2 has amount "ten", which is not a number.`)
}

func TestClear(t *testing.T) {
	clearEnv(t)
	path := seedFile(t, sampleCSV)

	res := csvRun(t, path, "n\n", "clear")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, core.MsgConfirmClear)
	assert.Contains(t, res.stdout, "Cancelled.")
	data, _ := os.ReadFile(path)
	assert.Equal(t, sampleCSV, string(data))

	res = csvRun(t, path, "y\n", "clear")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, core.MsgCleared)
	data, _ = os.ReadFile(path)
	assert.Equal(t, header, string(data))

	// clearing an empty store still succeeds
	res = csvRun(t, path, "", "--yes", "clear")
	assert.Equal(t, 0, res.code)
}

func TestDelete(t *testing.T) {
	clearEnv(t)
	path := seedFile(t, sampleCSV)

	res := csvRun(t, path, "", "--yes", "delete")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Please select an expense to delete.")

	res = csvRun(t, path, "", "--yes", "delete", "--row", "2")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, core.MsgDeleted)
	data, _ := os.ReadFile(path)
	assert.Equal(t, header+"2024-01-01,Food,10,\n2024-01-03,Fuel,20,\n", string(data))

	res = csvRun(t, path, "", "--yes", "delete", "2024-01-03", "Fuel", "20")
	require.Equal(t, 0, res.code, res.stderr)
	data, _ = os.ReadFile(path)
	assert.Equal(t, header+"2024-01-01,Food,10,\n", string(data))

	// stale selection leaves the file untouched
	res = csvRun(t, path, "", "--yes", "delete", "2024-01-03", "Fuel", "20")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Expense not found.")
	data, _ = os.ReadFile(path)
	assert.Equal(t, header+"2024-01-01,Food,10,\n", string(data))

	res = csvRun(t, path, "", "--yes", "delete", "--row", "9")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Expense not found.")
}

func TestDeleteDeclined(t *testing.T) {
	clearEnv(t)
	path := seedFile(t, sampleCSV)

	res := csvRun(t, path, "\n", "delete", "--row", "1")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, core.MsgConfirmDelete)
	assert.Contains(t, res.stdout, "Cancelled.")
	data, _ := os.ReadFile(path)
	assert.Equal(t, sampleCSV, string(data))
}

func TestPie(t *testing.T) {
	clearEnv(t)
	path := seedFile(t, sampleCSV+"2024-01-04,Misc,oops,\n")
	svgPath := filepath.Join(t.TempDir(), "chart.svg")

	res := csvRun(t, path, "", "pie", "--svg", svgPath)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Expense Distribution by Category")
	assert.Contains(t, res.stdout, "₹15.00")
	assert.Contains(t, res.stdout, "42.9%")
	assert.Contains(t, res.stdout, "57.1%")
	assert.NotContains(t, res.stdout, "Misc")

	svg, err := os.ReadFile(svgPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(svg), "<svg"))

	res = csvRun(t, seedFile(t, header), "", "pie")
	require.Equal(t, 0, res.code)
	assert.Equal(t, core.MsgNoChartData+"\n", res.stdout)
}

func TestReport(t *testing.T) {
	clearEnv(t)
	path := seedFile(t, sampleCSV)

	res := csvRun(t, path, "", "report", "2024-01")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Expenses for 2024-01:")
	assert.Contains(t, res.stdout, "Date: 2024-01-02, Category: Food, Amount: ₹5, Note: ")
	assert.Contains(t, res.stdout, "Total for 2024-01: ₹35.00")

	res = csvRun(t, path, "", "report", "2024-02")
	require.Equal(t, 0, res.code)
	assert.Equal(t, "No expenses found for 2024-02.\n", res.stdout)

	res = csvRun(t, path, "", "report", "2024-1")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Please enter the month as YYYY-MM.")

	// prompted month
	res = csvRun(t, path, "2024-01\n", "monthly-report")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "Enter month (YYYY-MM): ")
	assert.Contains(t, res.stdout, "Total for 2024-01: ₹35.00")

	// empty answer cancels silently
	res = csvRun(t, path, "\n", "report")
	require.Equal(t, 0, res.code)
	assert.Equal(t, "Enter month (YYYY-MM): ", res.stdout)
	assert.Empty(t, res.stderr)
}

func TestExport(t *testing.T) {
	clearEnv(t)
	path := seedFile(t, sampleCSV)

	res := csvRun(t, path, "", "export")
	require.Equal(t, 0, res.code)
	assert.Equal(t, sampleCSV, res.stdout)

	out := filepath.Join(t.TempDir(), "out.csv")
	res = csvRun(t, path, "", "export", "-o", out)
	require.Equal(t, 0, res.code)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(data))
}

func TestMemoryBackendLeavesSeedFileAlone(t *testing.T) {
	clearEnv(t)
	path := seedFile(t, sampleCSV)

	res := run(t, "", "--backend", "memory", "--file", path, "add", "2024-02-01", "Rent", "100")
	require.Equal(t, 0, res.code, res.stderr)

	data, _ := os.ReadFile(path)
	assert.Equal(t, sampleCSV, string(data))

	res = run(t, "", "--backend", "memory", "--file", path, "list")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "Total Expense: ₹35.00")
}

func TestSQLiteBackend(t *testing.T) {
	clearEnv(t)
	db := filepath.Join(t.TempDir(), "data", "spendlog.db")

	res := run(t, "", "--backend", "sqlite", "--db", db, "add", "2024-01-01", "Food", "12.50", "lunch")
	require.Equal(t, 0, res.code, res.stderr)

	res = run(t, "", "--backend", "sqlite", "--db", db, "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "lunch")
	assert.Contains(t, res.stdout, "Total Expense: ₹12.50")
}

func TestConfigFileAndErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := seedFile(t, sampleCSV)
	cfgPath := filepath.Join(dir, "spendlog.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("expenses_file = \""+filepath.ToSlash(path)+"\"\ncurrency_symbol = \"$\"\n"), 0o644))

	res := run(t, "", "--config", cfgPath, "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Total Expense: $35.00")

	res = run(t, "", "--backend", "sheets", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Error:")
	assert.Contains(t, res.stderr, "invalid data backend 'sheets'")

	res = run(t, "", "--config", filepath.Join(dir, "missing.toml"), "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "failed to read config file")
}
