package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nullguard/internal/classfile"
	"nullguard/internal/classpath"
	"nullguard/internal/config"
	"nullguard/internal/diag"
	"nullguard/internal/diagfmt"
	"nullguard/internal/model"
	"nullguard/internal/nullness"
	"nullguard/internal/patch"
	"nullguard/internal/scope"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <class-file|directory>",
	Short: "Print the nullness model of compiled classes",
	Long: `Describe every class below a directory (or a single class file): its
classification, the resolved nullness of each parameter and the guards a
patch pass would inject. --code disassembles method bodies, which shows the
prologue of classes that were already instrumented.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	addSettingsFlags(inspectCmd)
	inspectCmd.Flags().String("format", "text", "output format (text|json|yaml)")
	inspectCmd.Flags().Bool("code", false, "disassemble method bodies")
}

// inspectedClass is one entry of the inspect output.
type inspectedClass struct {
	Path             string                 `json:"path" yaml:"path"`
	ProcessorVersion string                 `json:"processorVersion,omitempty" yaml:"processorVersion,omitempty"`
	Class            *model.ClassDescriptor `json:"class" yaml:"class"`
	Guards           map[string][]string    `json:"guards,omitempty" yaml:"guards,omitempty"`
	Code             map[string]string      `json:"code,omitempty" yaml:"code,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (expected text|json|yaml)", format)
	}
	withCode, err := cmd.Flags().GetBool("code")
	if err != nil {
		return fmt.Errorf("failed to get code flag: %w", err)
	}
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	root, files, err := inspectTargets(args[0])
	if err != nil {
		return err
	}

	bag := diag.NewBag(4096)
	rep := diag.BagReporter{Bag: bag}
	ctx := cmd.Context()
	cp, err := classpath.Open(ctx, append([]string{root}, settings.classpath...), classpath.Options{Reporter: rep})
	if err != nil {
		return err
	}
	defer cp.Close()
	builder := model.NewBuilder(cp, scope.NewReader(cp, nullness.NewVocabulary(settings.markers...)), rep)

	out := make([]*inspectedClass, 0, len(files))
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		cf, err := classfile.Parse(data)
		if err != nil {
			diag.ReportWarning(rep, diag.StrUnparsableClass, diag.Location{Path: rel}, err.Error()).Emit()
			continue
		}
		desc, err := builder.Build(ctx, cf, rel)
		if err != nil {
			var conflict *nullness.ConflictError
			if errors.As(err, &conflict) {
				diag.ReportError(rep, diag.NulConflict, diag.Location{Path: rel}, err.Error()).Emit()
			} else {
				diag.ReportWarning(rep, diag.StrUnparsableClass, diag.Location{Path: rel}, err.Error()).Emit()
			}
			continue
		}
		ic := &inspectedClass{Path: rel, Class: desc}
		ic.ProcessorVersion, _ = patch.ProcessorVersion(cf)
		describeGuards(ic, settings.config)
		if withCode {
			ic.Code = disassemble(cf, desc)
		}
		out = append(out, ic)
	}

	stdout := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		err = enc.Encode(out)
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
	default:
		for _, ic := range out {
			writeClassText(stdout, ic)
		}
	}
	if err != nil {
		return err
	}

	useColor, err := colorEnabled(cmd, os.Stderr)
	if err != nil {
		return err
	}
	bag.Sort()
	diagfmt.Pretty(cmd.ErrOrStderr(), bag, diagfmt.PrettyOpts{Color: useColor, MinSeverity: uint8(diag.SevWarning)})
	if bag.HasErrors() {
		return &exitError{code: 1}
	}
	return nil
}

// inspectTargets returns the classpath root and the class files to describe,
// as slash-separated paths relative to it. A single class file's root is
// derived from its binary name when the path mirrors the package.
func inspectTargets(arg string) (string, []string, error) {
	st, err := os.Stat(arg)
	if err != nil {
		return "", nil, err
	}
	if st.IsDir() {
		var files []string
		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".class") {
				return nil
			}
			rel, err := filepath.Rel(arg, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !isMetadataName(rel) {
				files = append(files, rel)
			}
			return nil
		})
		sort.Strings(files)
		return arg, files, err
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", nil, err
	}
	dir, base := filepath.Dir(arg), filepath.Base(arg)
	cf, err := classfile.Parse(data)
	if err != nil {
		return dir, []string{base}, nil
	}
	name, err := cf.Name()
	if err != nil {
		return dir, []string{base}, nil
	}
	suffix := filepath.FromSlash(name + ".class")
	clean := filepath.Clean(arg)
	if strings.HasSuffix(clean, string(filepath.Separator)+suffix) || clean == suffix {
		root := strings.TrimSuffix(clean, suffix)
		if root == "" {
			root = "."
		}
		return root, []string{name + ".class"}, nil
	}
	return dir, []string{base}, nil
}

func isMetadataName(rel string) bool {
	base := strings.TrimSuffix(rel[strings.LastIndexByte(rel, '/')+1:], ".class")
	return base == "module-info" || base == "package-info"
}

func describeGuards(ic *inspectedClass, cfg config.Configuration) {
	for _, b := range ic.Class.Behaviors {
		guards := patch.Guards(b, cfg)
		if len(guards) == 0 {
			continue
		}
		if ic.Guards == nil {
			ic.Guards = make(map[string][]string)
		}
		for _, g := range guards {
			ic.Guards[b.Key()] = append(ic.Guards[b.Key()], fmt.Sprintf("%s %s", g.Name, g.Check))
		}
	}
}

func disassemble(cf *classfile.ClassFile, desc *model.ClassDescriptor) map[string]string {
	code := make(map[string]string)
	for _, b := range desc.Behaviors {
		if b.Index < 0 || b.Index >= len(cf.Methods) {
			continue
		}
		attr := cf.Methods[b.Index].Attribute(cf.Pool, classfile.AttrCode)
		if attr == nil {
			continue
		}
		c, err := classfile.ParseCode(attr.Info)
		if err != nil {
			code[b.Key()] = "error: " + err.Error()
			continue
		}
		text, err := classfile.Disassemble(cf.Pool, c.Bytecode)
		if err != nil {
			text += "error: " + err.Error() + "\n"
		}
		code[b.Key()] = text
	}
	return code
}

func writeClassText(w io.Writer, ic *inspectedClass) {
	c := ic.Class
	fmt.Fprintf(w, "%s (%s, class file %d, nullness %s)\n", c.DottedName(), ic.Path, c.Major, c.Nullness)
	if flags := classFlags(c); flags != "" {
		fmt.Fprintf(w, "  flags: %s\n", flags)
	}
	if ic.ProcessorVersion != "" {
		fmt.Fprintf(w, "  instrumented by nullguard %s\n", ic.ProcessorVersion)
	}
	if c.AssertionsFlagOwner != "" {
		fmt.Fprintf(w, "  assertions flag: %s\n", classfile.DottedName(c.AssertionsFlagOwner))
	}
	for _, b := range c.Behaviors {
		params := make([]string, len(b.Parameters))
		for i, p := range b.Parameters {
			param := fmt.Sprintf("%s %s: %s", p.TypeName, p.Name, p.Nullness)
			if p.IsSynthetic {
				param += " synthetic"
			}
			params[i] = param
		}
		fmt.Fprintf(w, "  %s(%s)", b.DisplayName(), strings.Join(params, ", "))
		if b.IsPublicAPI {
			fmt.Fprint(w, " public-api")
		}
		if !patch.Instrumentable(b) {
			fmt.Fprint(w, " excluded")
		}
		fmt.Fprintln(w)
		if guards := ic.Guards[b.Key()]; len(guards) > 0 {
			fmt.Fprintf(w, "    guards: %s\n", strings.Join(guards, ", "))
		}
		if text := ic.Code[b.Key()]; text != "" {
			for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}

func classFlags(c *model.ClassDescriptor) string {
	var flags []string
	add := func(set bool, name string) {
		if set {
			flags = append(flags, name)
		}
	}
	add(c.IsPublicAPI, "public-api")
	add(c.IsInterface, "interface")
	add(c.IsEnum, "enum")
	add(c.IsRecord, "record")
	add(c.IsDerived, "derived")
	add(c.IsInner, "inner")
	add(c.IsStatic, "static")
	add(c.IsAnonymous, "anonymous")
	add(c.IsLocal, "local")
	return strings.Join(flags, " ")
}
