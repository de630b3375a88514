package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
)

const historyFile = ".memkv_history"

var replCommands = []string{"GET", "SET", "DELETE", "METRICS", "HELP", "QUIT"}

// Argument errors shared by the REPL and the one-shot subcommands.
var (
	ErrNoArgs         = errors.New("the command requires at least one argument")
	ErrMismatchedArgs = errors.New("SET requires an even number of arguments: key value [key value ...]")
)

// splitArgs tokenizes a command line: tokens are separated by whitespace,
// tokens containing whitespace are double-quoted.
func splitArgs(line string) ([]string, error) {
	return shellquote.Split(line)
}

// unescapeValue interprets backslash escapes (\n, \t, \xNN, \\, ...) in a
// SET value so non-printable bytes can be typed at the prompt.
func unescapeValue(s string) ([]byte, error) {
	if !strings.Contains(s, `\`) {
		return []byte(s), nil
	}

	quoted := `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	unquoted, err := strconv.Unquote(quoted)
	if err != nil {
		return nil, fmt.Errorf("bad escape in value %q: %w", s, err)
	}
	return []byte(unquoted), nil
}

// parseSetArgs pairs up "key value key value ..." tokens, interpreting
// escapes in the values.
func parseSetArgs(args []string) ([]KeyValue, error) {
	if len(args) == 0 {
		return nil, ErrNoArgs
	}
	if len(args)%2 != 0 {
		return nil, ErrMismatchedArgs
	}

	kvs := make([]KeyValue, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		value, err := unescapeValue(args[i+1])
		if err != nil {
			return nil, err
		}
		kvs = append(kvs, KeyValue{Key: args[i], Value: value})
	}
	return kvs, nil
}

func printKeyValues(kvs map[string][]byte) {
	if len(kvs) == 0 {
		fmt.Println("(no keys found)")
		return
	}

	keys := make([]string, 0, len(kvs))
	for key := range kvs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Printf("%s = %q\n", key, kvs[key])
	}
}

func printKeyList(heading string, keys []string) {
	if len(keys) == 0 {
		fmt.Printf("%s: (none)\n", heading)
		return
	}
	fmt.Printf("%s: %s\n", heading, strings.Join(keys, ", "))
}

func printMetrics(m *MetricsResponse) {
	if m == nil {
		fmt.Println("(no metrics returned)")
		return
	}

	if m.HasKeyCount {
		fmt.Printf("key_count:                 %s\n", humanize.Comma(m.KeyCount))
	}
	if m.HasTotalStoreContentsSize {
		fmt.Printf("total_store_contents_size: %s (%s)\n",
			humanize.Comma(m.TotalStoreContentsSize), humanize.Bytes(uint64(max(m.TotalStoreContentsSize, 0))))
	}
	if m.HasKeysReadCount {
		fmt.Printf("keys_read_count:           %s\n", humanize.Comma(m.KeysReadCount))
	}
	if m.HasKeysUpdatedCount {
		fmt.Printf("keys_updated_count:        %s\n", humanize.Comma(m.KeysUpdatedCount))
	}
	if m.HasKeysDeletedCount {
		fmt.Printf("keys_deleted_count:        %s\n", humanize.Comma(m.KeysDeletedCount))
	}
}

func printHelp() {
	fmt.Println(`Commands:
  GET key [key ...]            Fetch values
  SET key value [key value]    Store values (values may use \ escapes)
  DELETE key [key ...]         Remove keys
  METRICS                      Show server metrics
  HELP                         Show this help
  QUIT                         Exit the shell`)
}

// runREPL drives the interactive shell against a connected client.
func runREPL(client *Client) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) (completions []string) {
		for _, cmd := range replCommands {
			if strings.HasPrefix(cmd, strings.ToUpper(prefix)) {
				completions = append(completions, cmd+" ")
			}
		}
		return completions
	})

	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, historyFile)
		if f, err := os.Open(historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Printf("memkv shell (server %s:%d). Type HELP for commands.\n", client.host, client.port)

	for {
		input, err := line.Prompt("memkv> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if quit := dispatchLine(client, line, input); quit {
			break
		}
	}

	if historyPath != "" {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// dispatchLine executes one shell line. It reports whether the shell
// should exit.
func dispatchLine(client *Client, line *liner.State, input string) bool {
	cmdAndArgs := strings.SplitN(input, " ", 2)
	cmd := strings.ToUpper(strings.TrimSpace(cmdAndArgs[0]))
	rest := ""
	if len(cmdAndArgs) > 1 {
		rest = cmdAndArgs[1]
	}

	args, err := splitArgs(rest)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return false
	}

	switch cmd {
	case "GET":
		if len(args) == 0 {
			fmt.Printf("error: %v\n", ErrNoArgs)
			return false
		}
		kvs, err := client.Get(args)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		printKeyValues(kvs)

	case "SET":
		kvs, err := parseSetArgs(args)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		keys, err := client.Set(kvs)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		printKeyList("stored", keys)

	case "DELETE":
		if len(args) == 0 {
			fmt.Printf("error: %v\n", ErrNoArgs)
			return false
		}
		keys, err := client.Delete(args)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		printKeyList("deleted", keys)

	case "METRICS":
		metrics, err := client.AllMetrics()
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		printMetrics(metrics)

	case "HELP":
		printHelp()

	case "QUIT", "EXIT", "Q":
		answer, err := line.Prompt("Are you sure you want to quit? [y|n]: ")
		if err != nil || (len(answer) > 0 && strings.ToLower(answer)[0] == 'y') {
			return true
		}

	default:
		fmt.Printf("unknown command %q, type HELP for the command list\n", cmd)
	}

	return false
}
